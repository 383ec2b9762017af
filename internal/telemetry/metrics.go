// Package telemetry wires tracing and Prometheus metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts booking lifecycle activity.
type Metrics struct {
	BookingsCreated   prometheus.Counter
	StatusChanges     *prometheus.CounterVec
	RejectedChanges   *prometheus.CounterVec
	ListCacheLookups  *prometheus.CounterVec
	SessionsOpened    prometheus.Counter
	RegistrationsDone *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BookingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "seminar_bookings_created_total",
			Help: "Booking requests created.",
		}),
		StatusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seminar_booking_status_changes_total",
			Help: "Booking status changes written, by new status.",
		}, []string{"status"}),
		RejectedChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seminar_booking_status_conflicts_total",
			Help: "Status changes refused because the booking was no longer pending, by current status.",
		}, []string{"current"}),
		ListCacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seminar_booking_list_cache_lookups_total",
			Help: "Booking list cache lookups, by result.",
		}, []string{"result"}),
		SessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "seminar_sessions_opened_total",
			Help: "Successful logins.",
		}),
		RegistrationsDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seminar_registrations_total",
			Help: "Profiles registered, by role.",
		}, []string{"role"}),
	}
	if reg != nil {
		reg.MustRegister(m.BookingsCreated, m.StatusChanges, m.RejectedChanges, m.ListCacheLookups, m.SessionsOpened, m.RegistrationsDone)
	}
	return m
}
