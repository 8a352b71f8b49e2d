package renderer

import (
	"errors"
	"fmt"
	"time"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-frame/common"
	vk "github.com/vulkan-go/vulkan"
)

type vulkanQueue struct {
	queue  vk.Queue
	family uint32
}

type vulkanConfig struct {
	device    vk.Device
	queues    map[common.QueueSelector]vulkanQueue
	swapchain vk.Swapchain
	recreate  func(width, height int) (vk.Swapchain, error)
}

type vulkanSignal struct {
	id  uint64
	sem vk.Semaphore
}

func (s *vulkanSignal) SignalID() uint64 { return s.id }

type vulkanFence struct {
	id    uint64
	fence vk.Fence
}

func (f *vulkanFence) FenceID() uint64 { return f.id }

// VulkanBatch is the command batch of the Vulkan backend: one primary command buffer allocated from
// the slot's command pool, begun for one-time submission.
type VulkanBatch struct {
	id        uint64
	label     string
	queue     common.QueueSelector
	cmd       vk.CommandBuffer
	submitted bool
}

var _ CommandBatch = &VulkanBatch{}

func (b *VulkanBatch) Label() string               { return b.label }
func (b *VulkanBatch) Queue() common.QueueSelector { return b.queue }

// CommandBuffer returns the command buffer draw callbacks record into.
func (b *VulkanBatch) CommandBuffer() vk.CommandBuffer {
	return b.cmd
}

func (b *VulkanBatch) ResetQueries(set common.QuerySet, first, count uint32) {
	if q, ok := set.(*vulkanQuerySet); ok && count > 0 {
		vk.CmdResetQueryPool(b.cmd, q.pool, first, count)
	}
}

func (b *VulkanBatch) BeginQuery(set common.QuerySet, slot uint32) {
	if q, ok := set.(*vulkanQuerySet); ok {
		vk.CmdBeginQuery(b.cmd, q.pool, slot, 0)
	}
}

func (b *VulkanBatch) EndQuery(set common.QuerySet, slot uint32) {
	if q, ok := set.(*vulkanQuerySet); ok {
		vk.CmdEndQuery(b.cmd, q.pool, slot)
	}
}

type vulkanQuerySet struct {
	device   vk.Device
	pool     vk.QueryPool
	capacity uint32
	released bool
}

var _ common.QuerySet = &vulkanQuerySet{}

func (q *vulkanQuerySet) Capacity() uint32 { return q.capacity }

// ReadResults blocks until every query of the range is available.
func (q *vulkanQuerySet) ReadResults(first, count uint32, dst []uint64) error {
	if q.released {
		return ErrReleased
	}
	if uint64(first)+uint64(count) > uint64(q.capacity) || len(dst) < int(count) {
		return fmt.Errorf("read [%d,%d) of %d queries: out of range", first, first+count, q.capacity)
	}
	if count == 0 {
		return nil
	}
	ret := vk.GetQueryPoolResults(q.device, q.pool, first, count,
		uint(count)*8, unsafe.Pointer(&dst[0]), 8,
		vk.QueryResultFlags(vk.QueryResult64Bit|vk.QueryResultWaitBit))
	return vkCheck("get query pool results", ret)
}

func (q *vulkanQuerySet) Release() {
	if q.released {
		return
	}
	vk.DestroyQueryPool(q.device, q.pool, nil)
	q.released = true
}

type vulkanRendererBackendImpl struct {
	cfg vulkanConfig

	slot common.FrameSlot
	// pools[slot][queue] is reset by BeginFrame once the slot's fences are known signaled.
	pools map[common.FrameSlot]map[common.QueueSelector]vk.CommandPool
}

var _ RendererBackend = &vulkanRendererBackendImpl{}

func newVulkanRendererBackend(cfg vulkanConfig) (*vulkanRendererBackendImpl, error) {
	if cfg.device == nil {
		return nil, fmt.Errorf("%w: vulkan needs WithVulkanDevice", ErrUnsupportedBackend)
	}
	if _, ok := cfg.queues[common.QueueGraphics]; !ok {
		return nil, fmt.Errorf("%w: vulkan needs a graphics queue", ErrUnsupportedBackend)
	}
	if _, ok := cfg.queues[common.QueueCompute]; !ok {
		cfg.queues[common.QueueCompute] = cfg.queues[common.QueueGraphics]
	}
	return &vulkanRendererBackendImpl{
		cfg:   cfg,
		pools: make(map[common.FrameSlot]map[common.QueueSelector]vk.CommandPool),
	}, nil
}

func (b *vulkanRendererBackendImpl) CreateSignal() (common.Signal, error) {
	var sem vk.Semaphore
	ret := vk.CreateSemaphore(b.cfg.device, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &sem)
	if err := vkCheck("create semaphore", ret); err != nil {
		return nil, err
	}
	return &vulkanSignal{id: nextHandleID(), sem: sem}, nil
}

func (b *vulkanRendererBackendImpl) CreateFence() (common.Fence, error) {
	var fence vk.Fence
	ret := vk.CreateFence(b.cfg.device, &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
	}, nil, &fence)
	if err := vkCheck("create fence", ret); err != nil {
		return nil, err
	}
	return &vulkanFence{id: nextHandleID(), fence: fence}, nil
}

func (b *vulkanRendererBackendImpl) ResetFence(f common.Fence) error {
	vf, ok := f.(*vulkanFence)
	if !ok {
		return ErrForeignHandle
	}
	return vkCheck("reset fence", vk.ResetFences(b.cfg.device, 1, []vk.Fence{vf.fence}))
}

func (b *vulkanRendererBackendImpl) DestroySignal(s common.Signal) {
	if vs, ok := s.(*vulkanSignal); ok {
		vk.DestroySemaphore(b.cfg.device, vs.sem, nil)
	}
}

func (b *vulkanRendererBackendImpl) DestroyFence(f common.Fence) {
	if vf, ok := f.(*vulkanFence); ok {
		vk.DestroyFence(b.cfg.device, vf.fence, nil)
	}
}

func (b *vulkanRendererBackendImpl) BeginFrame(slot common.FrameSlot) error {
	b.slot = slot
	for queue, pool := range b.pools[slot] {
		if err := vkCheck(fmt.Sprintf("reset %s command pool", queue), vk.ResetCommandPool(b.cfg.device, pool, 0)); err != nil {
			return err
		}
	}
	return nil
}

func (b *vulkanRendererBackendImpl) commandPool(queue common.QueueSelector) (vk.CommandPool, error) {
	slotPools, ok := b.pools[b.slot]
	if !ok {
		slotPools = make(map[common.QueueSelector]vk.CommandPool)
		b.pools[b.slot] = slotPools
	}
	if pool, ok := slotPools[queue]; ok {
		return pool, nil
	}
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(b.cfg.device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit),
		QueueFamilyIndex: b.cfg.queues[queue].family,
	}, nil, &pool)
	if err := vkCheck("create command pool", ret); err != nil {
		return pool, err
	}
	slotPools[queue] = pool
	return pool, nil
}

func (b *vulkanRendererBackendImpl) NewCommandBatch(label string, queue common.QueueSelector) (CommandBatch, error) {
	pool, err := b.commandPool(queue)
	if err != nil {
		return nil, err
	}
	cmds := make([]vk.CommandBuffer, 1)
	ret := vk.AllocateCommandBuffers(b.cfg.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, cmds)
	if err := vkCheck("allocate command buffer", ret); err != nil {
		return nil, err
	}
	ret = vk.BeginCommandBuffer(cmds[0], &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	if err := vkCheck("begin command buffer", ret); err != nil {
		return nil, err
	}
	return &VulkanBatch{id: nextHandleID(), label: label, queue: queue, cmd: cmds[0]}, nil
}

func (b *vulkanRendererBackendImpl) Submit(item common.Submission) error {
	cmds := make([]vk.CommandBuffer, 0, len(item.Batches))
	for _, batch := range item.Batches {
		vb, ok := batch.(*VulkanBatch)
		if !ok {
			return ErrForeignHandle
		}
		if vb.submitted {
			return fmt.Errorf("batch %s submitted twice", vb.label)
		}
		if err := vkCheck("end command buffer", vk.EndCommandBuffer(vb.cmd)); err != nil {
			return err
		}
		vb.submitted = true
		cmds = append(cmds, vb.cmd)
	}

	waits := make([]vk.Semaphore, 0, len(item.Waits))
	stages := make([]vk.PipelineStageFlags, 0, len(item.Waits))
	for _, w := range item.Waits {
		vs, ok := w.Signal.(*vulkanSignal)
		if !ok {
			return ErrForeignHandle
		}
		waits = append(waits, vs.sem)
		stages = append(stages, vkStages(w.Stage))
	}
	signals := make([]vk.Semaphore, 0, len(item.Signals))
	for _, s := range item.Signals {
		vs, ok := s.(*vulkanSignal)
		if !ok {
			return ErrForeignHandle
		}
		signals = append(signals, vs.sem)
	}

	fence := vk.NullFence
	if item.Fence != nil {
		vf, ok := item.Fence.(*vulkanFence)
		if !ok {
			return ErrForeignHandle
		}
		fence = vf.fence
	}

	ret := vk.QueueSubmit(b.cfg.queues[item.Queue].queue, 1, []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(waits)),
		PWaitSemaphores:      waits,
		PWaitDstStageMask:    stages,
		CommandBufferCount:   uint32(len(cmds)),
		PCommandBuffers:      cmds,
		SignalSemaphoreCount: uint32(len(signals)),
		PSignalSemaphores:    signals,
	}}, fence)
	return vkCheck("queue submit", ret)
}

func (b *vulkanRendererBackendImpl) WaitFences(fences []common.Fence, timeout time.Duration) (bool, error) {
	handles := make([]vk.Fence, 0, len(fences))
	for _, f := range fences {
		vf, ok := f.(*vulkanFence)
		if !ok {
			return false, ErrForeignHandle
		}
		handles = append(handles, vf.fence)
	}
	ret := vk.WaitForFences(b.cfg.device, uint32(len(handles)), handles, vk.True, uint64(timeout.Nanoseconds()))
	if ret == vk.Timeout {
		return false, nil
	}
	if err := vkCheck("wait for fences", ret); err != nil {
		return false, err
	}
	return true, nil
}

func (b *vulkanRendererBackendImpl) CreateQuerySet(label string, count uint32) (common.QuerySet, error) {
	if count == 0 {
		return nil, errors.New("query set needs at least one query")
	}
	var pool vk.QueryPool
	ret := vk.CreateQueryPool(b.cfg.device, &vk.QueryPoolCreateInfo{
		SType:      vk.StructureTypeQueryPoolCreateInfo,
		QueryType:  vk.QueryTypeOcclusion,
		QueryCount: count,
	}, nil, &pool)
	if err := vkCheck("create query pool "+label, ret); err != nil {
		return nil, err
	}
	return &vulkanQuerySet{device: b.cfg.device, pool: pool, capacity: count}, nil
}

func (b *vulkanRendererBackendImpl) ConfigureSurface(width, height int) error {
	if b.cfg.recreate == nil || b.cfg.swapchain == vk.NullSwapchain {
		return nil
	}
	vk.DeviceWaitIdle(b.cfg.device)
	sc, err := b.cfg.recreate(width, height)
	if err != nil {
		return fmt.Errorf("recreate swapchain: %w", err)
	}
	b.cfg.swapchain = sc
	return nil
}

// SetPresentMode is a no-op: the caller owns swapchain creation.
func (b *vulkanRendererBackendImpl) SetPresentMode(mode PresentMode) {}

func (b *vulkanRendererBackendImpl) AcquireImage(signal common.Signal) (uint32, bool, error) {
	if b.cfg.swapchain == vk.NullSwapchain {
		return 0, true, nil
	}
	vs, ok := signal.(*vulkanSignal)
	if !ok {
		return 0, false, ErrForeignHandle
	}
	var idx uint32
	ret := vk.AcquireNextImage(b.cfg.device, b.cfg.swapchain, vk.MaxUint64, vs.sem, vk.NullFence, &idx)
	switch ret {
	case vk.ErrorOutOfDate:
		return 0, true, nil
	case vk.Suboptimal, vk.Success:
		return idx, false, nil
	default:
		return 0, false, vkCheck("acquire next image", ret)
	}
}

func (b *vulkanRendererBackendImpl) Present(imageIndex uint32, waits []common.Signal) (bool, error) {
	sems := make([]vk.Semaphore, 0, len(waits))
	for _, s := range waits {
		vs, ok := s.(*vulkanSignal)
		if !ok {
			return false, ErrForeignHandle
		}
		sems = append(sems, vs.sem)
	}
	ret := vk.QueuePresent(b.cfg.queues[common.QueueGraphics].queue, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(sems)),
		PWaitSemaphores:    sems,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{b.cfg.swapchain},
		PImageIndices:      []uint32{imageIndex},
	})
	switch ret {
	case vk.ErrorOutOfDate, vk.Suboptimal:
		return true, nil
	case vk.Success:
		return false, nil
	default:
		return false, vkCheck("queue present", ret)
	}
}

func (b *vulkanRendererBackendImpl) WaitIdle() {
	vk.DeviceWaitIdle(b.cfg.device)
}

func (b *vulkanRendererBackendImpl) Release() {
	for _, slotPools := range b.pools {
		for _, pool := range slotPools {
			vk.DestroyCommandPool(b.cfg.device, pool, nil)
		}
	}
	b.pools = nil
}

func vkCheck(op string, ret vk.Result) error {
	if ret == vk.ErrorDeviceLost {
		return fmt.Errorf("%s: %w", op, ErrDeviceLost)
	}
	if err := vk.Error(ret); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func vkStages(mask common.StageMask) vk.PipelineStageFlags {
	var out vk.PipelineStageFlagBits
	if mask&common.StageTopOfPipe != 0 {
		out |= vk.PipelineStageTopOfPipeBit
	}
	if mask&common.StageTransfer != 0 {
		out |= vk.PipelineStageTransferBit
	}
	if mask&common.StageComputeShader != 0 {
		out |= vk.PipelineStageComputeShaderBit
	}
	if mask&common.StageEarlyFragmentTests != 0 {
		out |= vk.PipelineStageEarlyFragmentTestsBit
	}
	if mask&common.StageColorAttachmentOutput != 0 {
		out |= vk.PipelineStageColorAttachmentOutputBit
	}
	// no acceleration structure stage in these bindings
	if mask&(common.StageAccelerationStructureBuild|common.StageAllCommands) != 0 || out == 0 {
		out |= vk.PipelineStageAllCommandsBit
	}
	return vk.PipelineStageFlags(out)
}
