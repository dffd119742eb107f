package job

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mtodo/internal/health"
)

// StoreHealthJob pings the backing stores on a schedule so outages show up
// in the logs before a request hits them.
type StoreHealthJob struct {
	checker *health.Checker
}

func NewStoreHealthJob(checker *health.Checker) *StoreHealthJob {
	return &StoreHealthJob{checker: checker}
}

func (j *StoreHealthJob) Name() string {
	return "store_health"
}

func (j *StoreHealthJob) Run(ctx context.Context) error {
	report := j.checker.Check(ctx)
	if report.Healthy {
		logutil.GetLogger(ctx).Debug("store health ok", zap.Int("checks", len(report.Checks)))
		return nil
	}
	names := make([]string, 0, len(report.Checks))
	for name := range report.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	var failed []string
	for _, name := range names {
		status := report.Checks[name]
		if status == "ok" {
			continue
		}
		failed = append(failed, name+": "+status)
	}
	return fmt.Errorf("unhealthy dependencies: %s", strings.Join(failed, "; "))
}
