// Command marketreel turns a structured market snapshot into a narrated
// report video. `marketreel run` drives the full pipeline; interrupted or
// failed runs continue with `marketreel resume`.
package main
