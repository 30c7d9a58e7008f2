package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern safely invalidates cache pattern with logging
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete safely deletes cache keys with logging
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// InvalidateTaskCache invalidates all task-related caches using pipeline
func InvalidateTaskCache(ctx context.Context, cm *CacheManager, taskID uint) {
	SafeDelete(ctx, cm.Task,
		fmt.Sprintf("id:%d", taskID),
		fmt.Sprintf("details:%d", taskID))

	SafeInvalidatePattern(ctx, cm.Task, "list:*")
	SafeInvalidatePattern(ctx, cm.Stats, "task:*")
}

// InvalidateVolunteerCache invalidates one volunteer plus the directory listings
func InvalidateVolunteerCache(ctx context.Context, cm *CacheManager, volunteerID string) {
	SafeDelete(ctx, cm.Volunteer, fmt.Sprintf("id:%s", volunteerID))
	SafeInvalidatePattern(ctx, cm.Directory, "*")
	SafeInvalidatePattern(ctx, cm.Stats, "volunteer:*")
}
