/*
Package loader resolves the active flow document.

A Loader fetches the raw source, converts it (locally or through a ports.Converter
such as the OpenAI adapter), validates it and caches the result. Any failure other
than cancellation resolves to the built-in fallback flow, so a kiosk always has a
document to run.

A Refresher polls the Loader and publishes a new document only when its content
fingerprint changes. Sessions subscribe to it and reconcile their state after
every swap.
*/
package loader
