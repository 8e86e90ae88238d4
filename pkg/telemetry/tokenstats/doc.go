// Package tokenstats keeps a sample of raw LLM token counts.
//
// The token_bucket label on the token counters only says which range a call
// fell into. To decide whether the configured boundaries still fit real
// traffic, the Sampler records a fraction of raw counts into a Store, and
// BuildReport shows how they spread across the buckets along with their
// percentiles.
//
//	store, err := tokenstats.NewSQLiteStore(sqliteCfg, logger)
//	sampler := tokenstats.NewSampler(store, samplerCfg, logger)
//	defer sampler.Close()
//
//	inst, err := metrics.NewInstrumentation(reg, metrics.WithTokenObserver(sampler))
//
// Samples are written in batches off the request path; when the buffer is
// full new samples are dropped and counted rather than blocking the caller.
// A Scheduler prunes samples older than the retention period on a cron
// schedule.
package tokenstats
