package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gymmaster/internal/repository"
)

const (
	GroupByDay   = "day"
	GroupByMonth = "month"

	maxReportWindow = 366 * 24 * time.Hour
)

type ReportService struct {
	reportRepo repository.ReportRepository
	clock      Clock
}

func NewReportService(reportRepo repository.ReportRepository) *ReportService {
	return &ReportService{reportRepo: reportRepo}
}

func (s *ReportService) WithClock(clock Clock) *ReportService {
	s.clock = clock
	return s
}

func (s *ReportService) Dashboard(ctx context.Context) (*repository.DashboardSummary, error) {
	return s.reportRepo.Dashboard(ctx, s.clock.now())
}

func (s *ReportService) Revenue(ctx context.Context, from, to *time.Time, groupBy string) ([]repository.RevenuePoint, error) {
	switch groupBy {
	case "":
		groupBy = GroupByDay
	case GroupByDay, GroupByMonth:
	default:
		return nil, ErrInvalidInput
	}

	start, end, err := s.reportWindow(from, to)
	if err != nil {
		return nil, err
	}
	return s.reportRepo.Revenue(ctx, start, end, groupBy)
}

func (s *ReportService) Attendance(ctx context.Context, from, to *time.Time, branchID *uuid.UUID) ([]repository.AttendancePoint, error) {
	start, end, err := s.reportWindow(from, to)
	if err != nil {
		return nil, err
	}
	return s.reportRepo.Attendance(ctx, start, end, branchID)
}

func (s *ReportService) Memberships(ctx context.Context) (*repository.MembershipBreakdown, error) {
	return s.reportRepo.Memberships(ctx)
}

// reportWindow defaults to the last 30 days and rejects inverted or overlong ranges.
func (s *ReportService) reportWindow(from, to *time.Time) (time.Time, time.Time, error) {
	end := s.clock.now()
	if to != nil {
		end = to.UTC()
	}
	start := end.Add(-defaultStatsWindow)
	if from != nil {
		start = from.UTC()
	}
	if !start.Before(end) || end.Sub(start) > maxReportWindow {
		return time.Time{}, time.Time{}, ErrInvalidInput
	}
	return start, end, nil
}
