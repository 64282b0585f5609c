// Package connectivity tracks whether the device has a usable network path
// to the farm API.
//
// The monitor probes a configured endpoint on a fixed cadence and listens
// for kernel udev events on the net subsystem so interface changes trigger
// an immediate re-probe. Subscribers receive a Change only on true
// online/offline edges. When no reliable signal is available the monitor
// reports online and lets upload failures drive behavior instead.
package connectivity
