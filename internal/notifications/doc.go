// Package notifications pushes the proctoring events a human should see right
// away to an ntfy topic.
//
// Only suspensions and critical violations are forwarded; everything else is
// left to the admin dashboard fed by the broadcast package. The notifier is a
// broadcast.Broadcaster, so it plugs into the same fan-out as Redis.
package notifications
