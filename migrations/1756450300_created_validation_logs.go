package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"id": "pbc_vlg00000001",
			"name": "validation_logs",
			"type": "base",
			"system": false,
			"fields": [
				{
					"autogeneratePattern": "[a-z0-9]{15}",
					"hidden": false,
					"id": "text_vlg_id",
					"max": 15,
					"min": 15,
					"name": "id",
					"pattern": "^[a-z0-9]+$",
					"presentable": false,
					"primaryKey": true,
					"required": true,
					"system": true,
					"type": "text"
				},
				{
					"autogeneratePattern": "",
					"hidden": false,
					"id": "text_vlg_validation",
					"max": 0,
					"min": 0,
					"name": "validation_id",
					"pattern": "",
					"presentable": false,
					"primaryKey": false,
					"required": true,
					"system": false,
					"type": "text"
				},
				{
					"autogeneratePattern": "",
					"hidden": false,
					"id": "text_vlg_token",
					"max": 0,
					"min": 0,
					"name": "token_id",
					"pattern": "",
					"presentable": false,
					"primaryKey": false,
					"required": true,
					"system": false,
					"type": "text"
				},
				{
					"autogeneratePattern": "",
					"hidden": false,
					"id": "text_vlg_booking",
					"max": 0,
					"min": 0,
					"name": "booking_id",
					"pattern": "",
					"presentable": false,
					"primaryKey": false,
					"required": false,
					"system": false,
					"type": "text"
				},
				{
					"autogeneratePattern": "",
					"hidden": false,
					"id": "text_vlg_event",
					"max": 0,
					"min": 0,
					"name": "event_id",
					"pattern": "",
					"presentable": false,
					"primaryKey": false,
					"required": false,
					"system": false,
					"type": "text"
				},
				{
					"autogeneratePattern": "",
					"hidden": false,
					"id": "text_vlg_attendee",
					"max": 0,
					"min": 0,
					"name": "attendee_id",
					"pattern": "",
					"presentable": false,
					"primaryKey": false,
					"required": false,
					"system": false,
					"type": "text"
				},
				{
					"autogeneratePattern": "",
					"hidden": false,
					"id": "text_vlg_validator",
					"max": 0,
					"min": 0,
					"name": "validator_id",
					"pattern": "",
					"presentable": false,
					"primaryKey": false,
					"required": false,
					"system": false,
					"type": "text"
				},
				{
					"hidden": false,
					"id": "select_vlg_result",
					"maxSelect": 1,
					"name": "result",
					"presentable": false,
					"required": true,
					"system": false,
					"type": "select",
					"values": [
						"SUCCESS",
						"FAILED",
						"EXPIRED",
						"ALREADY_USED"
					]
				},
				{
					"autogeneratePattern": "",
					"hidden": false,
					"id": "text_vlg_reason",
					"max": 0,
					"min": 0,
					"name": "reason",
					"pattern": "",
					"presentable": false,
					"primaryKey": false,
					"required": false,
					"system": false,
					"type": "text"
				},
				{
					"hidden": false,
					"id": "select_vlg_scenario",
					"maxSelect": 1,
					"name": "scenario",
					"presentable": false,
					"required": true,
					"system": false,
					"type": "select",
					"values": [
						"ENTRY",
						"RE_ENTRY",
						"EXIT",
						"TRANSFER",
						"REPLACEMENT"
					]
				},
				{
					"hidden": false,
					"id": "date_vlg_timestamp",
					"max": "",
					"min": "",
					"name": "timestamp",
					"presentable": false,
					"required": true,
					"system": false,
					"type": "date"
				},
				{
					"autogeneratePattern": "",
					"hidden": false,
					"id": "text_vlg_location",
					"max": 0,
					"min": 0,
					"name": "location",
					"pattern": "",
					"presentable": false,
					"primaryKey": false,
					"required": false,
					"system": false,
					"type": "text"
				},
				{
					"autogeneratePattern": "",
					"hidden": false,
					"id": "text_vlg_device",
					"max": 0,
					"min": 0,
					"name": "device_info",
					"pattern": "",
					"presentable": false,
					"primaryKey": false,
					"required": false,
					"system": false,
					"type": "text"
				},
				{
					"autogeneratePattern": "",
					"hidden": false,
					"id": "text_vlg_notes",
					"max": 0,
					"min": 0,
					"name": "notes",
					"pattern": "",
					"presentable": false,
					"primaryKey": false,
					"required": false,
					"system": false,
					"type": "text"
				}
			],
			"indexes": [
				"CREATE UNIQUE INDEX idx_validation_logs_validation ON validation_logs (validation_id)",
				"CREATE INDEX idx_validation_logs_token ON validation_logs (token_id)",
				"CREATE INDEX idx_validation_logs_event ON validation_logs (event_id)",
				"CREATE INDEX idx_validation_logs_validator ON validation_logs (validator_id)",
				"CREATE INDEX idx_validation_logs_timestamp ON validation_logs (timestamp)"
			],
			"listRule": null,
			"viewRule": null,
			"createRule": null,
			"updateRule": null,
			"deleteRule": null
		}`

		collection := &core.Collection{}
		if err := json.Unmarshal([]byte(jsonData), collection); err != nil {
			return err
		}

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("pbc_vlg00000001")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
