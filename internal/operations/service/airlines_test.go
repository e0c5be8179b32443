package service

import (
	"sync"
	"sync/atomic"

	"flightsurety/internal/journal"
	"flightsurety/pkg/domain"
	dErrors "flightsurety/pkg/domain-errors"
)

func (s *ServiceSuite) TestRegisterAirline() {
	s.Run("unfunded owner cannot register", func() {
		_, err := s.service.RegisterAirline(s.ctx, owner, airline2, "Airline 2")
		s.requireCode(err, dErrors.CodeUnauthorized)
		s.False(s.service.IsAirline(s.ctx, airline2))
	})

	s.Run("bootstrap admits the first four directly", func() {
		s.bootstrap(s.service)
		s.Equal(4, s.service.AirlineCount(s.ctx))
		for _, a := range []domain.Principal{airline2, airline3, airline4} {
			details, err := s.service.GetAirlineDetails(s.ctx, a)
			s.Require().NoError(err)
			s.True(details.Registered)
			s.True(details.Funded)
		}
	})

	s.Run("re-registering a member is an idempotent success", func() {
		before := len(s.journal.List())
		reg, err := s.service.RegisterAirline(s.ctx, airline2, airline3, "Other Name")
		s.Require().NoError(err)
		s.False(reg.Changed)
		s.Equal("Airline 3", reg.Airline.Name)
		s.Equal(4, s.service.AirlineCount(s.ctx))
		s.Len(s.journal.List(), before)
	})

	s.Run("fifth airline becomes a pending candidate", func() {
		reg, err := s.service.RegisterAirline(s.ctx, owner, airline5, "Airline 5")
		s.Require().NoError(err)
		s.True(reg.Pending)
		s.Equal(4, s.service.AirlineCount(s.ctx))
		s.False(s.service.IsAirline(s.ctx, airline5))
		s.Equal(0, s.service.NumVotesCasted(s.ctx, airline5))

		details, err := s.service.GetAirlineDetails(s.ctx, airline5)
		s.Require().NoError(err)
		s.False(details.Registered)
		s.Require().Len(s.service.Candidates(s.ctx), 1)
		s.Len(s.journal.ListByKind(journal.KindAirlineProposed), 1)
	})

	s.Run("unregistered airline cannot register others", func() {
		_, err := s.service.RegisterAirline(s.ctx, airline5, stranger, "Stranger Air")
		s.requireCode(err, dErrors.CodeUnauthorized)
	})

	s.Run("invalid input", func() {
		_, err := s.service.RegisterAirline(s.ctx, owner, stranger, "   ")
		s.requireCode(err, dErrors.CodeInvalidInput)
		_, err = s.service.RegisterAirline(s.ctx, owner, "", "Nobody")
		s.requireCode(err, dErrors.CodeInvalidInput)
	})

	s.Run("unknown airline details", func() {
		_, err := s.service.GetAirlineDetails(s.ctx, stranger)
		s.requireCode(err, dErrors.CodeUnknownAirline)
	})
}

func (s *ServiceSuite) TestFundAirline() {
	s.Run("below threshold", func() {
		_, err := s.service.FundAirline(s.ctx, owner, DefaultFundingThreshold-1)
		s.requireCode(err, dErrors.CodeInsufficientFunds)
		s.Equal(domain.Amount(0), s.service.GetContractBalance(s.ctx))
	})

	s.Run("unknown airline", func() {
		_, err := s.service.FundAirline(s.ctx, stranger, DefaultFundingThreshold)
		s.requireCode(err, dErrors.CodeUnknownAirline)
	})

	s.Run("funding moves value into the reserve", func() {
		details, err := s.service.FundAirline(s.ctx, owner, DefaultFundingThreshold)
		s.Require().NoError(err)
		s.True(details.Funded)
		s.Equal(DefaultFundingThreshold, s.service.GetContractBalance(s.ctx))
		s.Equal(DefaultFundingThreshold, s.service.GetReserveBalance(s.ctx))
		s.Equal(domain.Amount(0), s.service.GetPayableBalance(s.ctx, owner))
	})

	s.Run("funded airline tops up the reserve", func() {
		details, err := s.service.FundAirline(s.ctx, owner, 1)
		s.Require().NoError(err)
		s.True(details.Funded)
		s.Equal(DefaultFundingThreshold+1, s.service.GetContractBalance(s.ctx))
		s.Equal(DefaultFundingThreshold+1, s.service.GetReserveBalance(s.ctx))

		funded := s.journal.ListByKind(journal.KindAirlineFunded)
		s.Require().Len(funded, 2)
		s.Equal("false", funded[0].Attributes["top_up"])
		s.Equal("true", funded[1].Attributes["top_up"])
	})

	s.Run("empty top-up", func() {
		_, err := s.service.FundAirline(s.ctx, owner, 0)
		s.requireCode(err, dErrors.CodeInvalidInput)
		s.Equal(DefaultFundingThreshold+1, s.service.GetContractBalance(s.ctx))
	})

	s.Run("pending candidate cannot fund", func() {
		svc, _, _ := s.newService(Config{Owner: owner, BootstrapSize: 1})
		_, err := svc.FundAirline(s.ctx, owner, DefaultFundingThreshold)
		s.Require().NoError(err)
		reg, err := svc.RegisterAirline(s.ctx, owner, airline2, "Airline 2")
		s.Require().NoError(err)
		s.Require().True(reg.Pending)

		_, err = svc.FundAirline(s.ctx, airline2, DefaultFundingThreshold)
		s.requireCode(err, dErrors.CodeUnknownAirline)
	})
}

func (s *ServiceSuite) TestCastVote() {
	s.bootstrap(s.service)
	_, err := s.service.RegisterAirline(s.ctx, owner, airline5, "Airline 5")
	s.Require().NoError(err)

	s.Run("unknown candidate", func() {
		_, err := s.service.CastVote(s.ctx, owner, stranger)
		s.requireCode(err, dErrors.CodeUnknownCandidate)
	})

	s.Run("unfunded voter", func() {
		_, err := s.service.CastVote(s.ctx, stranger, airline5)
		s.requireCode(err, dErrors.CodeUnauthorized)
	})

	s.Run("two of four votes are not a majority", func() {
		res, err := s.service.CastVote(s.ctx, owner, airline5)
		s.Require().NoError(err)
		s.False(res.Registered)
		s.Equal(3, res.Required)

		res, err = s.service.CastVote(s.ctx, airline2, airline5)
		s.Require().NoError(err)
		s.False(res.Registered)
		s.Equal(2, s.service.NumVotesCasted(s.ctx, airline5))
		s.False(s.service.IsAirline(s.ctx, airline5))
	})

	s.Run("duplicate vote", func() {
		_, err := s.service.CastVote(s.ctx, owner, airline5)
		s.requireCode(err, dErrors.CodeDuplicateVote)
		s.Equal(2, s.service.NumVotesCasted(s.ctx, airline5))
	})

	s.Run("third vote crosses quorum", func() {
		res, err := s.service.CastVote(s.ctx, airline3, airline5)
		s.Require().NoError(err)
		s.True(res.Registered)
		s.Equal(3, res.Votes)
		s.True(s.service.IsAirline(s.ctx, airline5))
		s.Equal(5, s.service.AirlineCount(s.ctx))
		s.Empty(s.service.Candidates(s.ctx))
	})

	s.Run("votes after admission are rejected", func() {
		_, err := s.service.CastVote(s.ctx, airline4, airline5)
		s.requireCode(err, dErrors.CodeAlreadyRegistered)
		s.Equal(3, s.service.NumVotesCasted(s.ctx, airline5))
	})

	s.Run("admitted airline is unfunded until it funds", func() {
		details, err := s.service.GetAirlineDetails(s.ctx, airline5)
		s.Require().NoError(err)
		s.False(details.Funded)
		_, err = s.service.RegisterAirline(s.ctx, airline5, stranger, "Stranger Air")
		s.requireCode(err, dErrors.CodeUnauthorized)
	})
}

func (s *ServiceSuite) TestSingleFundedAirlineVotesAlone() {
	svc, _, _ := s.newService(Config{Owner: owner, BootstrapSize: 1})
	_, err := svc.FundAirline(s.ctx, owner, DefaultFundingThreshold)
	s.Require().NoError(err)

	reg, err := svc.RegisterAirline(s.ctx, owner, airline2, "Airline 2")
	s.Require().NoError(err)
	s.Require().True(reg.Pending)

	res, err := svc.CastVote(s.ctx, owner, airline2)
	s.Require().NoError(err)
	s.Equal(1, res.Required)
	s.True(res.Registered)
	s.Equal(2, svc.AirlineCount(s.ctx))
}

func (s *ServiceSuite) TestConcurrentVotesCrossQuorumOnce() {
	members := []domain.Principal{owner}
	for i := 0; i < 9; i++ {
		members = append(members, domain.Principal("voter-"+string(rune('a'+i))))
	}
	svc, sink, _ := s.newService(Config{Owner: owner, BootstrapSize: len(members)})
	_, err := svc.FundAirline(s.ctx, owner, DefaultFundingThreshold)
	s.Require().NoError(err)
	for _, m := range members[1:] {
		_, err := svc.RegisterAirline(s.ctx, owner, m, "Member "+m.String())
		s.Require().NoError(err)
		_, err = svc.FundAirline(s.ctx, m, DefaultFundingThreshold)
		s.Require().NoError(err)
	}
	_, err = svc.RegisterAirline(s.ctx, owner, airline5, "Airline 5")
	s.Require().NoError(err)

	var (
		wg         sync.WaitGroup
		accepted   atomic.Int32
		crossings  atomic.Int32
		rejections atomic.Int32
	)
	for _, m := range members {
		wg.Add(1)
		go func(voter domain.Principal) {
			defer wg.Done()
			res, err := svc.CastVote(s.ctx, voter, airline5)
			switch {
			case err == nil:
				accepted.Add(1)
				if res.Registered {
					crossings.Add(1)
				}
			case dErrors.HasCode(err, dErrors.CodeAlreadyRegistered):
				rejections.Add(1)
			}
		}(m)
	}
	wg.Wait()

	// Ten funded members: six votes form the majority.
	s.Equal(int32(6), accepted.Load())
	s.Equal(int32(1), crossings.Load())
	s.Equal(int32(4), rejections.Load())
	s.Equal(len(members)+1, svc.AirlineCount(s.ctx))

	admissions := 0
	for _, e := range sink.ListByKind(journal.KindAirlineRegistered) {
		if e.Subject == airline5.String() {
			admissions++
		}
	}
	s.Equal(1, admissions)
	s.Len(sink.ListByKind(journal.KindVoteCast), 6)
}
