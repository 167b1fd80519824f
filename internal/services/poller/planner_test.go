package poller

import (
	"testing"
	"time"

	"github.com/BearBump/xtreeshop/internal/models"
	pollermocks "github.com/BearBump/xtreeshop/internal/services/poller/mocks"
	"github.com/stretchr/testify/suite"
)

type PlannerSuite struct {
	suite.Suite
}

func (s *PlannerSuite) TestBackoffDelay() {
	p := DefaultPlanner()
	s.Equal(5*time.Minute, p.BackoffDelay(1))
	s.Equal(15*time.Minute, p.BackoffDelay(2))
	s.Equal(30*time.Minute, p.BackoffDelay(3))
	s.Equal(60*time.Minute, p.BackoffDelay(4))
	s.Equal(60*time.Minute, p.BackoffDelay(100))
}

func (s *PlannerSuite) TestNextCheckDelay_Delivered() {
	m := pollermocks.NewRand(s.T())
	p := NewPlanner(DefaultPlannerConfig(), m)
	s.Equal(365*24*time.Hour, p.NextCheckDelay(models.StatusDelivered))
}

func (s *PlannerSuite) TestNextCheckDelay_Shipped_UsesRand() {
	m := pollermocks.NewRand(s.T())
	m.On("Intn", 61).Return(15).Once()

	p := NewPlanner(PlannerConfig{
		ShippedMinDelay: 1 * time.Minute,
		ShippedMaxDelay: 2 * time.Minute,
	}, m)
	s.Equal(75*time.Second, p.NextCheckDelay(models.StatusShipped))
}

func (s *PlannerSuite) TestNextCheckDelay_ShippedFixed() {
	m := pollermocks.NewRand(s.T())
	p := NewPlanner(DefaultPlannerConfig(), m)
	s.Equal(1*time.Minute, p.NextCheckDelay(models.StatusShipped))
}

func (s *PlannerSuite) TestNextCheckDelay_Preparing() {
	m := pollermocks.NewRand(s.T())
	p := NewPlanner(PlannerConfig{PreparingDelay: 3 * time.Minute}, m)
	s.Equal(3*time.Minute, p.NextCheckDelay(models.StatusPreparing))
	s.Equal(3*time.Minute, p.NextCheckDelay(models.StatusPaymentAccepted))
}

func (s *PlannerSuite) TestNewPlanner_ClampsMax() {
	p := NewPlanner(PlannerConfig{ShippedMinDelay: 10 * time.Minute, ShippedMaxDelay: 2 * time.Minute}, nil)
	s.Equal(10*time.Minute, p.Config().ShippedMaxDelay)
}

func TestPlannerSuite(t *testing.T) {
	suite.Run(t, new(PlannerSuite))
}
