/*
Package session runs one kiosk conversation on top of the stateless engine.

A Session owns the conversation state, the flow document it runs on and the
speech coordinator. It serializes every event with a mutex, turns speech
failures and rejected actions into dismissible notices, and reconciles the
state whenever the loader publishes a new document.
*/
package session
