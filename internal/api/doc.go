// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

/*
Package api exposes the VitalSync HTTP API using the chi router.

Every JSON response uses the APIResponse envelope:

	{"success": true, "data": {...}, "meta": {"request_id": "...", "timestamp": "..."}}
	{"success": false, "error": {"code": "NOT_FOUND", "message": "..."}, "meta": {...}}

Routes:

	GET    /api/v1/health                          overall status
	GET    /api/v1/health/live                     liveness probe
	GET    /api/v1/health/ready                    readiness probe (database ping)
	GET    /api/v1/oauth/{provider}/callback       provider redirect target
	GET    /metrics                                Prometheus metrics

Authenticated (bearer JWT, subject = user ID):

	GET    /api/v1/providers                       supported providers
	GET    /api/v1/providers/{provider}/authorize  authorization URL + state
	GET    /api/v1/integrations                    the caller's integrations
	GET    /api/v1/integrations/{id}
	DELETE /api/v1/integrations/{id}               disconnect (revoke + delete)
	POST   /api/v1/integrations/{id}/sync          sync immediately
	GET    /api/v1/goals                           progress of active goals
	POST   /api/v1/goals                           create a goal
	POST   /api/v1/goals/validate                  validate without storing
	GET    /api/v1/goals/{id}/progress
	GET    /api/v1/ws                              websocket (token may be passed as ?access_token=)

Admin:

	POST   /api/v1/admin/sync/batch                run one batch sync now

Integrations and goals belonging to another user are reported as not found.
Domain errors map to status codes in writeServiceError.
*/
package api
