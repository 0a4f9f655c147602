// Package marketdata defines the structured market snapshot the pipeline
// ingests and a file-backed source for scraped session data.
package marketdata
