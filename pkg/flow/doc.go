// Package flow decodes raw flow sources into FlowDocuments and ships the
// built-in banking flow used when no source can be converted.
package flow
