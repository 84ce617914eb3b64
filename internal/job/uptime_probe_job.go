package job

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/studymate/internal/health"
)

type Prober interface {
	ProbeAll(ctx context.Context) []health.Status
}

// UptimeProbeJob pings upstream services so hosted models stay warm and the
// health cache stays fresh.
type UptimeProbeJob struct {
	prober Prober
}

func NewUptimeProbeJob(prober Prober) *UptimeProbeJob {
	return &UptimeProbeJob{prober: prober}
}

func (j *UptimeProbeJob) Name() string {
	return "uptime_probe"
}

func (j *UptimeProbeJob) Run(ctx context.Context) error {
	if j.prober == nil {
		return nil
	}
	var down []string
	for _, st := range j.prober.ProbeAll(ctx) {
		if !st.Healthy {
			down = append(down, st.Name)
		}
	}
	if len(down) > 0 {
		return fmt.Errorf("unhealthy targets: %s", strings.Join(down, ", "))
	}
	return nil
}
