// Package telemetry records search and build activity: Prometheus
// collectors for scraping and an in-memory query log for the stats endpoint.
// Nothing leaves the process unless /metrics is scraped.
package telemetry
