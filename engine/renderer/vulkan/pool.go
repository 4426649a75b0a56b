package vulkan

import "sync"

// VulkanLockPool serializes access to queues. Vulkan requires external
// synchronization of a VkQueue, and two queue types may resolve to the same
// queue when their families match.
type VulkanLockPool struct {
	mu           sync.Mutex
	queueMutexes map[uint32]*sync.Mutex // queue family index as key
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		queueMutexes: make(map[uint32]*sync.Mutex),
	}
}

func (vs *VulkanLockPool) SetQueueFamily(index uint32) {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if _, exists := vs.queueMutexes[index]; !exists {
		vs.queueMutexes[index] = &sync.Mutex{}
	}
}

func (vs *VulkanLockPool) SafeQueueCall(queueFamilyIndex uint32, fn func() error) error {
	vs.mu.Lock()
	l, ok := vs.queueMutexes[queueFamilyIndex]
	if !ok {
		l = &sync.Mutex{}
		vs.queueMutexes[queueFamilyIndex] = l
	}
	vs.mu.Unlock()

	l.Lock()
	defer l.Unlock()
	return fn()
}

// SafeAllQueues runs fn while holding every queue lock, e.g. for
// vkDeviceWaitIdle which touches all queues.
func (vs *VulkanLockPool) SafeAllQueues(fn func() error) error {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	for _, l := range vs.queueMutexes {
		l.Lock()
	}
	defer func() {
		for _, l := range vs.queueMutexes {
			l.Unlock()
		}
	}()
	return fn()
}
