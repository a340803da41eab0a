// Package config loads, normalizes, and validates telephony bridge
// configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TELEPHONY_BUS_ADDRESS. The Config type centralizes every knob the bridge
// daemon and CLI need: which bus to dial, which modem object backs each slot,
// dispatcher budgets, list capacities, and where state lives on disk.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
