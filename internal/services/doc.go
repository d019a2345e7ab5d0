// Package services holds error-classification helpers shared by pipeline
// components that talk to external systems.
package services
