// internal/services/progress_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupCompletedTasksRemovesStaleTrackers(t *testing.T) {
	svc := NewProgressService()

	done := svc.CreateTracker("task-done")
	done.Complete("")
	done.UpdateTime = time.Now().Add(-2 * trackerRetention)

	failed := svc.CreateTracker("task-failed")
	failed.Fail("模拟失败")
	failed.UpdateTime = time.Now().Add(-2 * trackerRetention)

	fresh := svc.CreateTracker("task-fresh")
	fresh.Complete("")

	running := svc.CreateTracker("task-running")
	running.UpdateTime = time.Now().Add(-2 * trackerRetention)

	svc.CleanupCompletedTasks(trackerRetention)

	_, exists := svc.GetTracker("task-done")
	assert.False(t, exists, "过期的完成任务应被清理")
	_, exists = svc.GetTracker("task-failed")
	assert.False(t, exists, "过期的失败任务应被清理")

	_, exists = svc.GetTracker("task-fresh")
	assert.True(t, exists, "终态未过期的任务保留")
	_, exists = svc.GetTracker("task-running")
	assert.True(t, exists, "运行中的任务无论多旧都不清理")
}

func TestTrackerSubscribeDeliversCurrentState(t *testing.T) {
	svc := NewProgressService()

	tracker := svc.CreateTracker("task-s")
	tracker.UpdateProgress(42, "进行中")

	updates := tracker.Subscribe()
	defer tracker.Unsubscribe(updates)

	select {
	case u := <-updates:
		require.Equal(t, 42, u.Progress, "订阅后应立即收到当前状态")
		assert.Equal(t, StatusRunning, u.Status)
	default:
		t.Fatal("订阅后未收到初始状态帧")
	}
}
