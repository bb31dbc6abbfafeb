package retention

import (
	"fmt"

	"golang.org/x/sys/unix"

	"streamctl/pkg/models"
)

// DiskUsageFunc reports disk usage for a storage root. Injectable so
// tests can simulate disk pressure without filling a filesystem.
type DiskUsageFunc func(root string) (models.DiskUsage, error)

// StatfsUsage reads real disk usage for the filesystem holding root.
func StatfsUsage(root string) (models.DiskUsage, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(root, &stat); err != nil {
		return models.DiskUsage{}, fmt.Errorf("statfs %s: %w", root, err)
	}

	total := int64(stat.Blocks) * stat.Bsize
	available := int64(stat.Bavail) * stat.Bsize
	return models.DiskUsage{
		SpaceUsed:      total - int64(stat.Bfree)*stat.Bsize,
		SpaceAvailable: available,
		TotalSpace:     total,
	}, nil
}
