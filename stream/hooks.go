package stream

import "github.com/sarchlab/davidrt/hooking"

// Hook positions of a stream. Unless stated otherwise, the item is a copy of
// the task descriptor and the detail is nil.
var (
	// HookPosTaskAlloc is triggered when slots are claimed for a task.
	HookPosTaskAlloc = &hooking.HookPos{Name: "Stream.TaskAlloc"}

	// HookPosTaskSubmit is triggered after the device accepts a task.
	HookPosTaskSubmit = &hooking.HookPos{Name: "Stream.TaskSubmit"}

	// HookPosTaskComplete is triggered when a completed task is recycled.
	HookPosTaskComplete = &hooking.HookPos{Name: "Stream.TaskComplete"}

	// HookPosTaskPostProc is triggered when a task in the public queue is
	// post-processed.
	HookPosTaskPostProc = &hooking.HookPos{Name: "Stream.TaskPostProc"}

	// HookPosReclaimPass is triggered each time a full ring makes the
	// allocator try to reclaim slots. The item is the attempt number.
	HookPosReclaimPass = &hooking.HookPos{Name: "Stream.ReclaimPass"}

	// HookPosSyncTimeout is triggered when a synchronous wait times out. The
	// item is the TaskRef of the task waited on.
	HookPosSyncTimeout = &hooking.HookPos{Name: "Stream.SyncTimeout"}

	// HookPosCaptureCascade is triggered on the capturing stream when the
	// capture continues on a new stream. The item is the new stream and the
	// detail is the previous one.
	HookPosCaptureCascade = &hooking.HookPos{Name: "Stream.CaptureCascade"}
)
