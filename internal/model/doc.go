// Package model holds the value types shared by the detector, the formatter
// and the snapshot stores: slots, datasets and changes.
package model
