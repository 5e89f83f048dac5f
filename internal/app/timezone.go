package app

import (
	"log/slog"

	"markme/internal/clock"
)

// effectiveTimezone picks the zone for a request: the explicit one if valid,
// else the stored one if valid, else fallback.
func effectiveTimezone(log *slog.Logger, userID int64, requested, stored, fallback string) string {
	if requested != "" {
		if clock.Valid(requested) {
			return requested
		}
		log.Warn("ignoring invalid request timezone", "user_id", userID, "timezone", requested)
	}
	if stored != "" {
		if clock.Valid(stored) {
			return stored
		}
		log.Warn("ignoring invalid stored timezone", "user_id", userID, "timezone", stored)
	}
	return fallback
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
