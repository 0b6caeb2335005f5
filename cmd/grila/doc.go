// Command grila grades multiple-choice answer sheets from the terminal and
// runs the grading HTTP service.
//
// `grila serve` starts the service. `grila grade` and `grila grade-batch`
// run the scoring worker locally against the configured result store, and
// the results and stats commands query that store. Every listing command
// accepts --json.
package main
