package service

import (
	"context"
	"fmt"
	"log"

	"fee-ledger/internal/domain"
)

type FeeScheduleRepository interface {
	Get(ctx context.Context, id domain.Identity) (domain.FeeSchedule, bool, error)
	Set(ctx context.Context, id domain.Identity, s domain.FeeSchedule) error
	List(ctx context.Context) (map[domain.Identity]domain.FeeSchedule, error)
}

type ScheduleService struct {
	repo FeeScheduleRepository
}

func NewScheduleService(repo FeeScheduleRepository) *ScheduleService {
	return &ScheduleService{repo: repo}
}

// Effective returns the student's schedule, or the defaults when none is set.
// predefined is true only when a schedule was stored for the student.
func (s *ScheduleService) Effective(ctx context.Context, id domain.Identity) (schedule domain.FeeSchedule, predefined bool, err error) {
	schedule, ok, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.FeeSchedule{}, false, err
	}
	if !ok {
		return domain.DefaultFeeSchedule(), false, nil
	}
	return schedule, true, nil
}

// Set stores a schedule. Only admins may change schedules.
func (s *ScheduleService) Set(ctx context.Context, actor Actor, id domain.Identity, schedule domain.FeeSchedule) error {
	if !actor.IsAdmin {
		return fmt.Errorf("%w: only admins can set fee schedules", domain.ErrForbidden)
	}
	if schedule.MonthlyFee < 0 || schedule.AnnualCharges < 0 || schedule.AdmissionFee < 0 {
		return fmt.Errorf("%w: fee amounts must not be negative", domain.ErrInvalidFeeRecord)
	}
	if err := s.repo.Set(ctx, id, schedule); err != nil {
		return err
	}
	log.Printf("[FEES] %s set schedule for %s: %+v", actor.Username, id, schedule)
	return nil
}

func (s *ScheduleService) List(ctx context.Context) (map[domain.Identity]domain.FeeSchedule, error) {
	return s.repo.List(ctx)
}
