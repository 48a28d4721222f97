package storage

import (
	"fmt"

	"carteira/internal/core"
)

// ScheduleColumns is the column form of a core.Schedule.
type ScheduleColumns struct {
	Kind    string
	GroupID *string
	Current *int64
	Total   *int64
}

// EncodeSchedule flattens s into its columns. A nil schedule is a plain entry.
func EncodeSchedule(s core.Schedule) ScheduleColumns {
	switch v := s.(type) {
	case core.Fixed:
		return ScheduleColumns{Kind: string(core.KindFixed)}
	case core.Installment:
		group, cur, total := v.GroupID, int64(v.Current), int64(v.Total)
		return ScheduleColumns{Kind: string(core.KindInstallment), GroupID: &group, Current: &cur, Total: &total}
	}
	return ScheduleColumns{Kind: string(core.KindSingle)}
}

// Schedule rebuilds the variant stored in c.
func (c ScheduleColumns) Schedule() (core.Schedule, error) {
	switch core.Kind(c.Kind) {
	case core.KindSingle:
		return core.Single{}, nil
	case core.KindFixed:
		return core.Fixed{}, nil
	case core.KindInstallment:
		if c.GroupID == nil || c.Current == nil || c.Total == nil {
			return nil, fmt.Errorf("%w: incomplete installment columns", core.ErrInvalidInstallment)
		}
		return core.Installment{GroupID: *c.GroupID, Current: int(*c.Current), Total: int(*c.Total)}, nil
	}
	return nil, fmt.Errorf("unknown transaction kind %q", c.Kind)
}
