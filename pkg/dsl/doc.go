/*
Package dsl provides a fluent builder for flow documents.

It is an alternative to writing the JSON or YAML source by hand, useful for
tests, generated flows and IDE type-checking. Build runs the same integrity
checks as the loader.

Example usage:

	b := dsl.New().Store("Main Branch")
	en := b.Language("en")

	en.Add("start").
		Choice("What would you like to do?").
		Option("deposit", "Deposit", "deposit_amount", "deposit", "put in").
		Option("staff", "Call staff", "staff_call")

	en.Add("deposit_amount").
		Input("How much?", "amount").
		Limit(200000, "staff_call").
		Go("staff_call")

	en.Add("staff_call").
		Message("A member of staff is on the way.")

	doc, err := b.Build()
*/
package dsl
