// Package core defines the domain model shared by the ruleguard packages.
//
// The core package provides:
//   - Detection rule types (Rule, RuleUpdate, Threat)
//   - Alerting API resource types (Alert, AlertType, AlertPage)
//   - Enumerations for severity, query language and rule type
//   - Merge logic applying a normalized update onto a stored rule
//
// Types here carry no I/O. Validation of untyped payloads lives in the
// validation package; persistence lives in storage.
package core
