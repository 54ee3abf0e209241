// Command mocap is the operator CLI for the marker reconstruction
// pipeline: it enqueues and inspects trials, runs reconstructions
// synchronously, and manages calibration and configuration.
package main
