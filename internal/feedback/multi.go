package feedback

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type multiRecorder struct {
	primary Recorder
	mirrors []Recorder
}

// Multi writes to primary, then to each mirror. Mirror failures are reported
// in the returned error but never skip the primary write.
func Multi(primary Recorder, mirrors ...Recorder) Recorder {
	if len(mirrors) == 0 {
		return primary
	}
	return &multiRecorder{primary: primary, mirrors: mirrors}
}

func (m *multiRecorder) Record(ctx context.Context, r Record) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	var errs []error
	if err := m.primary.Record(ctx, r); err != nil {
		errs = append(errs, err)
	}
	for i, mirror := range m.mirrors {
		if err := mirror.Record(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("mirror %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
