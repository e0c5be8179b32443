package airline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"flightsurety/pkg/domain"
	dErrors "flightsurety/pkg/domain-errors"
	"flightsurety/pkg/platform/sentinel"
)

const threshold = domain.Amount(10)

var (
	owner  = domain.Principal("0xowner")
	second = domain.Principal("0xsecond")
	third  = domain.Principal("0xthird")
	fourth = domain.Principal("0xfourth")
	fifth  = domain.Principal("0xfifth")
)

type RegistrySuite struct {
	suite.Suite
	registry *Registry
	now      time.Time
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.now = time.Date(2020, 5, 28, 14, 45, 0, 0, time.UTC)
	r, err := NewRegistry(owner, "Owner Air", s.now)
	s.Require().NoError(err)
	s.registry = r
}

func (s *RegistrySuite) fund(p domain.Principal) {
	_, err := s.registry.CanFund(p, threshold, threshold)
	s.Require().NoError(err)
	s.registry.ApplyFunding(p, s.now)
}

func (s *RegistrySuite) bootstrap() {
	s.fund(owner)
	for _, p := range []domain.Principal{second, third, fourth} {
		_, err := s.registry.Register(p, "Airline "+p.String(), owner, s.now)
		s.Require().NoError(err)
	}
}

func (s *RegistrySuite) TestOwnerIsFirstAirline() {
	s.True(s.registry.IsAirline(owner))
	s.False(s.registry.IsFunded(owner))
	s.Equal(1, s.registry.Count())
}

func (s *RegistrySuite) TestUnfundedAirlineCannotRegister() {
	_, err := s.registry.Register(second, "Airline 2", owner, s.now)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.False(s.registry.IsAirline(second))
	s.Equal(1, s.registry.Count())
}

func (s *RegistrySuite) TestBootstrapRegistration() {
	s.bootstrap()

	s.Equal(4, s.registry.Count())
	got, err := s.registry.Get(third)
	s.Require().NoError(err)
	s.Equal(Details{ID: third, Name: "Airline 0xthird", Registered: true, Funded: false}, got.Details())

	s.Run("re-registering a member is an idempotent success", func() {
		reg, err := s.registry.Register(third, "Renamed", owner, s.now)
		s.Require().NoError(err)
		s.False(reg.Changed)
		s.Equal("Airline 0xthird", reg.Airline.Name)
		s.Equal(4, s.registry.Count())
	})

	s.Run("registered but unfunded airline cannot register others", func() {
		_, err := s.registry.Register(fifth, "Airline 5", second, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *RegistrySuite) TestFifthAirlineNeedsMajority() {
	s.bootstrap()

	reg, err := s.registry.Register(fifth, "Airline 5", owner, s.now)
	s.Require().NoError(err)
	s.True(reg.Pending)
	s.False(s.registry.IsAirline(fifth))
	s.Equal(4, s.registry.Count())
	s.Zero(s.registry.Votes(fifth))

	s.fund(second)
	s.fund(third)
	s.fund(fourth)
	s.Equal(4, s.registry.FundedCount())
	s.Equal(3, s.registry.RequiredVotes())

	res, err := s.registry.Vote(fifth, owner, s.now)
	s.Require().NoError(err)
	s.False(res.Registered)
	s.Equal(1, res.Votes)

	res, err = s.registry.Vote(fifth, second, s.now)
	s.Require().NoError(err)
	s.False(res.Registered)
	s.Equal(2, s.registry.Votes(fifth))
	s.False(s.registry.IsAirline(fifth))

	s.Run("duplicate vote does not count", func() {
		_, err := s.registry.Vote(fifth, second, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateVote))
		s.Equal(2, s.registry.Votes(fifth))
	})

	res, err = s.registry.Vote(fifth, third, s.now)
	s.Require().NoError(err)
	s.True(res.Registered)
	s.Equal(3, res.Votes)
	s.True(s.registry.IsAirline(fifth))
	s.Equal(5, s.registry.Count())

	s.Run("votes after registration are rejected", func() {
		_, err := s.registry.Vote(fifth, fourth, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyRegistered))
		s.Equal(3, s.registry.Votes(fifth))
	})
}

func (s *RegistrySuite) TestVoteValidation() {
	s.bootstrap()

	s.Run("unfunded voter is unauthorized", func() {
		_, err := s.registry.Vote(fifth, second, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("unknown candidate", func() {
		_, err := s.registry.Vote(fifth, owner, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeUnknownCandidate))
	})

	s.Run("candidate list holds pending airlines only", func() {
		_, err := s.registry.Register(fifth, "Airline 5", owner, s.now)
		s.Require().NoError(err)
		candidates := s.registry.Candidates()
		s.Require().Len(candidates, 1)
		s.Equal(fifth, candidates[0].ID)
	})
}

func (s *RegistrySuite) TestSingleFundedAirlineQuorum() {
	r, err := NewRegistry(owner, "Owner Air", s.now, WithBootstrapSize(1))
	s.Require().NoError(err)
	s.registry = r
	s.fund(owner)

	reg, err := r.Register(second, "Airline 2", owner, s.now)
	s.Require().NoError(err)
	s.True(reg.Pending)

	res, err := r.Vote(second, owner, s.now)
	s.Require().NoError(err)
	s.True(res.Registered, "one vote is a strict majority of one funded airline")
	s.Equal(1, res.Required)
	s.Equal(2, r.Count())
}

func (s *RegistrySuite) TestFunding() {
	s.Run("unknown airline", func() {
		_, err := s.registry.CanFund(fifth, threshold, threshold)
		s.True(dErrors.HasCode(err, dErrors.CodeUnknownAirline))
	})

	s.Run("below threshold", func() {
		topUp, err := s.registry.CanFund(owner, threshold-1, threshold)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientFunds))
		s.False(topUp)
		s.False(s.registry.IsFunded(owner))
	})

	s.Run("funded airline tops up", func() {
		s.fund(owner)
		s.True(s.registry.IsFunded(owner))
		fundedAt := s.registry.airlines[owner].FundedAt

		topUp, err := s.registry.CanFund(owner, 1, threshold)
		s.Require().NoError(err)
		s.True(topUp)
		a := s.registry.ApplyFunding(owner, s.now.Add(time.Hour))
		s.Equal(fundedAt, a.FundedAt)
		s.Equal(1, s.registry.FundedCount())
	})

	s.Run("empty top-up", func() {
		_, err := s.registry.CanFund(owner, 0, threshold)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("pending candidate cannot fund", func() {
		r, err := NewRegistry(owner, "Owner Air", s.now, WithBootstrapSize(1))
		s.Require().NoError(err)
		_, err = r.CanFund(owner, threshold, threshold)
		s.Require().NoError(err)
		r.ApplyFunding(owner, s.now)
		_, err = r.Register(second, "Airline 2", owner, s.now)
		s.Require().NoError(err)

		_, err = r.CanFund(second, threshold, threshold)
		s.True(dErrors.HasCode(err, dErrors.CodeUnknownAirline))
	})
}

func (s *RegistrySuite) TestGetUnknown() {
	_, err := s.registry.Get(fifth)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
