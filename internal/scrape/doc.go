// Package scrape owns the request orchestration for Sales Navigator scrapes.
//
// A request flows through four blocking stages, each with its own fixed retry
// budget:
//   - WorkerPool picks the first agent in the configured pool that is not RUNNING.
//   - Launcher starts that agent with the search URL and session cookie, retrying
//     while the provider reports maximum parallelism.
//   - StatusPoller polls the resulting container until it is finished or failed.
//   - Normalizer fetches the result object, unwraps its shape and projects every
//     record onto ProfileRecord.
//
// Orchestrator threads one job id through the stages and persists the user's
// session afterwards. Every failure is an *Error carrying a Kind so the HTTP layer
// can map it to a status code without string matching.
package scrape
