// Package capture defines the captured HTTP transaction record and the
// conjunctive filter used to search captured records.
//
// A Record is created by the producer before the request is dispatched,
// filled in as the response arrives, and handed to a store exactly once.
// Stores take a Clone at that point and never mutate their copy.
//
// A Filter is a pure value: the zero Filter matches every record, and the
// search text, method set and status-group set are AND-ed together.
package capture
