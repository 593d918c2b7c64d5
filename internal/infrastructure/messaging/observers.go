package messaging

import (
	"log/slog"

	"github.com/proam-rankings/rankings-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// OBSERVERS
// Audit-log observers for the domain events both binaries publish. They give
// operators a structured trail of every rating mutation without touching the
// write path.
// ══════════════════════════════════════════════════════════════════════════════

// RegisterAuditObservers attaches the standard audit observers to the
// dispatcher. Every rating mutation and standings recompute lands in the
// structured log, keyed by aggregate ID.
func RegisterAuditObservers(d *Dispatcher, logger *slog.Logger) error {
	audit := logger.With("component", "audit")

	if err := d.Register(shared.EventRatingApplied, "audit.rating_applied", func(e shared.Event) error {
		p := e.Payload()
		audit.Info("результат применён",
			"competitor_id", e.AggregateID(),
			"event_id", p["event_id"],
			"placement", p["placement"],
			"rp_earned", p["rp_earned"],
			"rp_after", p["rp_after"],
		)
		return nil
	}); err != nil {
		return err
	}

	if err := d.Register(shared.EventTierChanged, "audit.tier_changed", func(e shared.Event) error {
		p := e.Payload()
		audit.Info("смена дивизиона",
			"competitor_id", e.AggregateID(),
			"old_tier", p["old_tier"],
			"new_tier", p["new_tier"],
		)
		return nil
	}); err != nil {
		return err
	}

	if err := d.Register(shared.EventRatingDecayed, "audit.rating_decayed", func(e shared.Event) error {
		p := e.Payload()
		audit.Debug("распад рейтинга",
			"competitor_id", e.AggregateID(),
			"rp_before", p["rp_before"],
			"rp_after", p["rp_after"],
			"periods", p["periods"],
		)
		return nil
	}); err != nil {
		return err
	}

	if err := d.Register(shared.EventDecayTickCompleted, "audit.decay_tick", func(e shared.Event) error {
		p := e.Payload()
		audit.Info("тик распада завершён",
			"checked", p["checked"],
			"decayed", p["decayed"],
			"total_rp_lost", p["total_rp_lost"],
		)
		return nil
	}); err != nil {
		return err
	}

	if err := d.Register(shared.EventStandingsRecomputed, "audit.standings_recomputed", func(e shared.Event) error {
		p := e.Payload()
		audit.Info("таблица пересчитана",
			"scope", p["scope"],
			"competitors", p["competitors"],
			"rank_changes", p["rank_changes"],
		)
		return nil
	}); err != nil {
		return err
	}

	return d.Register(shared.EventCompetitorRegistered, "audit.competitor_registered", func(e shared.Event) error {
		p := e.Payload()
		audit.Info("участник зарегистрирован",
			"competitor_id", e.AggregateID(),
			"name", p["name"],
			"region", p["region"],
		)
		return nil
	})
}
