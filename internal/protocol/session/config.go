package session

import "time"

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines engine behavior. The retry and settle values were found
// empirically against real bricks.
type Config struct {
	Policy SyncPolicy
	// InitialCounter is the first message counter issued.
	InitialCounter uint16
	// ReceiveBuffer bounds a single transport read.
	ReceiveBuffer int
	// ShortReadRetries bounds consecutive reads too short to hold a reply.
	ShortReadRetries int
	ShortReadBackoff BackoffConfig
	// RadioSettle delays the first read of a bluetooth wait.
	RadioSettle time.Duration
}

func DefaultConfig() Config {
	return Config{
		Policy:           PolicyStandard,
		InitialCounter:   42,
		ReceiveBuffer:    1024,
		ShortReadRetries: 100,
		ShortReadBackoff: BackoffConfig{
			InitialDelay: 10 * time.Millisecond,
			Multiplier:   1.0,
			MaxDelay:     10 * time.Millisecond,
		},
		RadioSettle: 100 * time.Millisecond,
	}
}
