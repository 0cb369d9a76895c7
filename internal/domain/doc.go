// Package domain contains the core entities of the orchestration service:
// task records, agent steps, and workflow cards. Entities validate themselves
// on construction and expose small state-transition helpers; they carry no
// persistence or transport concerns.
package domain
