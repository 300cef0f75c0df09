// Package codec turns application values into stored JSON payloads and back.
//
// Each object type is registered once with a default factory. Structural
// schemas decode straight into their Go type. Polymorphic schemas carry a
// discriminator field in the payload; decoding dispatches on it through a
// decode table and fails on a missing or unrecognized discriminator instead
// of falling back to a default.
package codec
