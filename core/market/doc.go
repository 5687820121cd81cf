// Package market formulates spot-market dispatch, the joint clearing of
// energy and frequency control ancillary services across regions, as a linear
// program.
//
// A Spot instance is populated through builder operations, one per market
// concern: unit bids, capacity and ramp limits, FCAS trapeziums, regional
// demand, interconnectors with piecewise-linear losses, generic constraints.
// Each operation appends decision variables, sparse constraint coefficients
// and objective terms to shared tables under a single monotonically
// increasing id space. Dispatch assembles the tables into one model, drives a
// solver.Backend and back-fills solved values, slacks and clearing prices,
// which the result getters report in market terms.
package market
