package kit

// DefaultKits returns the two built-in kits served when no kit directory
// is configured or the configured directory does not exist. Their content
// is fixed so that scenario-driven tests (and operators following the
// worked examples) see the same catalog every time.
func DefaultKits() []AgentKit {
	return []AgentKit{officeOpsCore(), incidentCommander()}
}

func officeOpsCore() AgentKit {
	return AgentKit{
		KitID:                "kit_office_ops_core",
		Name:                 "Office Ops Core",
		Description:          "Reads and routes day-to-day office messages, calendar invites, and tickets.",
		Role:                 "office_operations",
		DefaultPolicyProfile: "org_default",
		DefaultPlaybookID:    "pbk_office_ops_v1",
		CapabilityGoals: []string{
			"message.read",
			"message.send",
			"calendar.read",
			"tool.list",
		},
		ConnectorCandidates: []ConnectorCandidate{
			{
				ConnectorID:          "con_feishu_official",
				RequiredCapabilities: []string{"message.read", "message.send"},
				RiskProfile:          RiskStandard,
			},
			{
				ConnectorID:          "con_office_calendar",
				RequiredCapabilities: []string{"calendar.read"},
				RiskProfile:          RiskStandard,
			},
			{
				ConnectorID:          "con_mcp_gateway",
				RequiredCapabilities: []string{"tool.list"},
				OptionalCapabilities: []string{"tool.read"},
				RiskProfile:          RiskRestricted,
			},
			{
				ConnectorID:          "con_ticket_system",
				RequiredCapabilities: []string{"ticket.create"},
				RiskProfile:          RiskStandard,
			},
		},
		Rollout: []RolloutPhase{
			{
				PhaseID:             "phase_pilot",
				Title:               "Pilot",
				Focus:               "Read-only message and calendar visibility for one team.",
				ApprovalExpectation: ApprovalNone,
			},
			{
				PhaseID:             "phase_general_availability",
				Title:               "General availability",
				Focus:               "Message sends and ticket creation enabled org-wide.",
				ApprovalExpectation: ApprovalSingle,
			},
		},
	}
}

func incidentCommander() AgentKit {
	return AgentKit{
		KitID:                "kit_incident_commander",
		Name:                 "Incident Commander",
		Description:          "Declares incidents, coordinates responders, and executes runbooks.",
		Role:                 "incident_response",
		DefaultPolicyProfile: "org_incident",
		DefaultPlaybookID:    "pbk_incident_commander_v1",
		CapabilityGoals: []string{
			"incident.declare",
			"message.send",
			"ticket.create",
			"runbook.execute",
		},
		ConnectorCandidates: []ConnectorCandidate{
			{
				ConnectorID:          "con_incident_bridge",
				RequiredCapabilities: []string{"incident.declare"},
				RiskProfile:          RiskHighControl,
			},
			{
				ConnectorID:          "con_feishu_official",
				RequiredCapabilities: []string{"message.send"},
				RiskProfile:          RiskStandard,
			},
			{
				ConnectorID:          "con_ticket_system",
				RequiredCapabilities: []string{"ticket.create"},
				RiskProfile:          RiskStandard,
			},
			{
				ConnectorID:          "con_runbook_executor",
				RequiredCapabilities: []string{"runbook.execute"},
				RiskProfile:          RiskHighControl,
			},
		},
		Rollout: []RolloutPhase{
			{
				PhaseID:             "phase_shadow",
				Title:               "Shadow",
				Focus:               "Observe incidents and draft responses without executing runbooks.",
				ApprovalExpectation: ApprovalDual,
			},
			{
				PhaseID:             "phase_active",
				Title:               "Active command",
				Focus:               "Full incident declaration and runbook execution authority.",
				ApprovalExpectation: ApprovalSingleOrDual,
			},
		},
	}
}
