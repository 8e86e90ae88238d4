// Package metrics implements the hindsight telemetry surface: a metric
// registry, the instrumentation used by memory operations and LLM call
// sites, and the Prometheus scrape endpoint.
//
// # Overview
//
// Four pieces, leaf first:
//
//   - TokenBuckets maps raw token counts to a fixed set of range labels
//     ("0-100", "100-500", ..., "50k+") so token counts never become label
//     values of their own.
//   - Registry owns all series. Descriptors are registered once with a fixed
//     label schema; series are created on first use.
//   - Instrumentation resolves label values for operations and LLM calls and
//     writes into the Registry.
//   - Handler serves GET /metrics from the live Registry.
//
// # Metric Families
//
//	hindsight_operation_duration  histogram  operation, bank_id, source, budget, max_tokens, success
//	hindsight_operation_total     counter    operation, bank_id, source, budget, max_tokens, success
//	hindsight_llm_duration        histogram  provider, model, scope, success
//	hindsight_llm_calls_total     counter    provider, model, scope, success
//	hindsight_llm_tokens_input    counter    provider, model, scope, success, token_bucket
//	hindsight_llm_tokens_output   counter    provider, model, scope, success, token_bucket
//
// Descriptor names are dotted ("hindsight.operation.total"); the scrape
// endpoint exposes them with dots replaced by underscores.
//
// # Usage
//
//	reg := metrics.NewRegistry()
//	inst, err := metrics.NewInstrumentation(reg, metrics.WithLogger(logger))
//	if err != nil {
//		return err // conflicting registration, do not start
//	}
//
//	err = inst.MeasureOperation(metrics.OperationInfo{
//		Operation: metrics.OperationRecall,
//		BankID:    bankID,
//		Source:    metrics.SourceAPI,
//		Budget:    metrics.BudgetMid,
//	}, func() error {
//		return recall(ctx, query)
//	})
//
//	inst.RecordLLMCall(metrics.LLMCall{
//		Provider:     "openai",
//		Model:        "gpt-4o-mini",
//		Scope:        metrics.ScopeMemory,
//		Duration:     elapsed,
//		InputTokens:  usage.Prompt,
//		OutputTokens: usage.Completion,
//		Success:      true,
//	})
//
//	mux.Handle("/metrics", metrics.Handler(reg, logger))
//
// # Exactly Once
//
// An operation measurement records one histogram observation and one counter
// increment on the first End call and ignores later calls. MeasureOperation
// ends the measurement on return and on panic.
//
// # Cardinality
//
// Enumerated labels (operation, source, budget, scope, success,
// token_bucket) are typed and validated. Free-form labels (bank_id, model,
// provider, max_tokens) can be capped with WithMaxLabelValues; values past
// the cap are reported as "other".
//
// # Errors
//
// Registration conflicts are returned from Register and NewInstrumentation
// and should abort startup. Unknown handles, label schema mismatches and
// invalid values are returned by the Registry; the Instrumentation logs them
// and drops that single record so telemetry never fails business logic.
package metrics
