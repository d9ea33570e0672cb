// Package commands defines the carcost CLI and wires dependencies for subcommands.
//
// Commands
//
//   - serve          Run the JSON API
//   - metrics        List the metrics
//   - metric         Apply a metric to a value
//   - cars           List cars
//   - segments       Show the balanced full-to-full segments of a car
//   - costs          Show the other costs of a car per month
//   - occurrences    Count the occurrences of a recurrence
//   - upcoming       List the other costs falling due soon
//   - add-car        Create a car
//   - add-fuel-type  Create a fuel type
//   - refuel         Record a refueling
//   - add-cost       Record a one-off or recurring cost
//   - import         Import a JSON document of records as one batch
//
// # Implementation
//
// The root command loads the configuration, opens the record store and builds
// the calculators before any subcommand runs. With AMQP_URL set, writes made
// here are announced to running servers so their caches go Dirty.
package commands
