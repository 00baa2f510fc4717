// Package types defines the entity types, the persistence port, and the
// standard errors for the stockroom inventory engine.
//
// Characteristics describe a named, typed attribute. Groups select a
// snapshot of characteristics. Records belong to a group and carry one
// coerced Value per characteristic.
package types
