package checks

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/ovpnhub/internal/models"
	"github.com/charlesng35/ovpnhub/internal/monitoring"
)

// Database pings the registry database and confirms the lease table exists. A
// missing lease table leaves every replica unable to coordinate cycles, so it
// reports degraded instead of up.
func Database(db *gorm.DB) monitoring.Check {
	return monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if db == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "database not configured"}
		}

		sqlDB, err := db.DB()
		if err != nil {
			return monitoring.ResultFromError(err, start)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return monitoring.ResultFromError(err, start)
		}
		if !db.WithContext(ctx).Migrator().HasTable(&models.Lease{}) {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "lease table missing"}
		}
		return monitoring.ResultFromError(nil, start)
	})
}
