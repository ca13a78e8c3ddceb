package quotes

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Sink names where a submission ended up.
type Sink string

const (
	SinkDisk   Sink = "disk"
	SinkEmail  Sink = "email"
	SinkQueued Sink = "queued"
)

type Receipt struct {
	Sink   Sink   `json:"sink"`
	Record Record `json:"record"`
}

// Intake accepts a validated submission. Submitter and the workflow outbox
// both satisfy it.
type Intake interface {
	Submit(ctx context.Context, r Record) (Receipt, error)
}

// Submitter writes to the repository and, when that fails, mails the
// record instead. Exactly one sink receives it; if both fail the error
// joins both causes.
type Submitter struct {
	repo   Repository
	mailer Mailer
	log    *slog.Logger
	now    func() time.Time
}

func NewSubmitter(repo Repository, mailer Mailer, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{repo: repo, mailer: mailer, log: logger.With("component", "quotes"), now: time.Now}
}

func (s *Submitter) Submit(ctx context.Context, r Record) (Receipt, error) {
	saved, err := s.repo.Append(ctx, r)
	if err == nil {
		s.log.Info("quote saved", "id", saved.ID, "email", saved.Email())
		return Receipt{Sink: SinkDisk, Record: saved}, nil
	}
	s.log.Error("quote not persisted, trying email", "error", err)

	if s.mailer == nil {
		return Receipt{}, errors.Join(err, ErrMailNotConfigured)
	}
	if r.CreatedAt == "" {
		r.CreatedAt = s.now().UTC().Format(TimeLayout)
	}
	if mailErr := s.mailer.SendQuote(ctx, r); mailErr != nil {
		s.log.Error("quote email fallback failed", "error", mailErr)
		return Receipt{}, errors.Join(err, mailErr)
	}
	s.log.Info("quote sent by email", "email", r.Email())
	return Receipt{Sink: SinkEmail, Record: r}, nil
}
