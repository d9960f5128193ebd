package repository

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	tableSessions   = "extraction_sessions"
	tableCandidates = "extraction_candidates"
	tableGroupings  = "groupings"
	tableMembers    = "grouping_members"
	tableTemplates  = "templates"
	tableSections   = "template_sections"
	tableFields     = "template_fields"
)

var longText = map[string]string{"postgres": "text"}

var (
	// SessionsColumns holds the columns for the "extraction_sessions" table.
	SessionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, SchemaType: longText},
		{Name: "category", Type: field.TypeString},
		{Name: "source_file_name", Type: field.TypeString, SchemaType: longText},
		{Name: "source_kind", Type: field.TypeString},
		{Name: "status", Type: field.TypeString},
		{Name: "created_by", Type: field.TypeString, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
		{Name: "expires_at", Type: field.TypeTime, Nullable: true},
		{Name: "cleansed_at", Type: field.TypeTime, Nullable: true},
		{Name: "materialized_at", Type: field.TypeTime, Nullable: true},
		{Name: "template_id", Type: field.TypeUUID, Nullable: true},
	}
	// SessionsTable holds the schema information for the "extraction_sessions" table.
	SessionsTable = &schema.Table{
		Name:       tableSessions,
		Columns:    SessionsColumns,
		PrimaryKey: []*schema.Column{SessionsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "extraction_sessions_expires_at",
				Unique:  false,
				Columns: []*schema.Column{SessionsColumns[8]},
			},
		},
	}

	// CandidatesColumns holds the columns for the "extraction_candidates" table.
	CandidatesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "session_id", Type: field.TypeString, SchemaType: longText},
		{Name: "source_file_name", Type: field.TypeString, SchemaType: longText},
		{Name: "source_kind", Type: field.TypeString},
		{Name: "title_text", Type: field.TypeString, SchemaType: longText},
		{Name: "raw_text", Type: field.TypeString, SchemaType: longText},
		{Name: "role", Type: field.TypeString},
		{Name: "row_index", Type: field.TypeInt},
		{Name: "column_index", Type: field.TypeInt},
		{Name: "column_letter", Type: field.TypeString},
		{Name: "score", Type: field.TypeInt},
		{Name: "features", Type: field.TypeJSON, Nullable: true},
		{Name: "created_by", Type: field.TypeString, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "cleansed_at", Type: field.TypeTime, Nullable: true},
	}
	// CandidatesTable holds the schema information for the "extraction_candidates" table.
	CandidatesTable = &schema.Table{
		Name:       tableCandidates,
		Columns:    CandidatesColumns,
		PrimaryKey: []*schema.Column{CandidatesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "extraction_candidates_extraction_sessions_candidates",
				Columns:    []*schema.Column{CandidatesColumns[1]},
				RefColumns: []*schema.Column{SessionsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "extraction_candidates_session_id_row_index_column_index",
				Unique:  true,
				Columns: []*schema.Column{CandidatesColumns[1], CandidatesColumns[7], CandidatesColumns[8]},
			},
		},
	}

	// GroupingsColumns holds the columns for the "groupings" table.
	GroupingsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "session_id", Type: field.TypeString, SchemaType: longText},
		{Name: "tab_name", Type: field.TypeString},
		{Name: "description", Type: field.TypeString, Nullable: true, SchemaType: longText},
		{Name: "display_order", Type: field.TypeInt},
		{Name: "color", Type: field.TypeString},
		{Name: "icon", Type: field.TypeString},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// GroupingsTable holds the schema information for the "groupings" table.
	GroupingsTable = &schema.Table{
		Name:       tableGroupings,
		Columns:    GroupingsColumns,
		PrimaryKey: []*schema.Column{GroupingsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "groupings_extraction_sessions_groupings",
				Columns:    []*schema.Column{GroupingsColumns[1]},
				RefColumns: []*schema.Column{SessionsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "groupings_session_id_display_order",
				Unique:  true,
				Columns: []*schema.Column{GroupingsColumns[1], GroupingsColumns[4]},
			},
		},
	}

	// MembersColumns holds the columns for the "grouping_members" table. The
	// primary key on candidate_id makes grouping ownership exclusive and the
	// (grouping_id, position) index keeps member order total.
	MembersColumns = []*schema.Column{
		{Name: "candidate_id", Type: field.TypeUUID},
		{Name: "grouping_id", Type: field.TypeUUID},
		{Name: "session_id", Type: field.TypeString, SchemaType: longText},
		{Name: "position", Type: field.TypeInt},
	}
	// MembersTable holds the schema information for the "grouping_members" table.
	MembersTable = &schema.Table{
		Name:       tableMembers,
		Columns:    MembersColumns,
		PrimaryKey: []*schema.Column{MembersColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "grouping_members_extraction_candidates_membership",
				Columns:    []*schema.Column{MembersColumns[0]},
				RefColumns: []*schema.Column{CandidatesColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "grouping_members_groupings_members",
				Columns:    []*schema.Column{MembersColumns[1]},
				RefColumns: []*schema.Column{GroupingsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "grouping_members_grouping_id_position",
				Unique:  true,
				Columns: []*schema.Column{MembersColumns[1], MembersColumns[3]},
			},
			{
				Name:    "grouping_members_session_id",
				Unique:  false,
				Columns: []*schema.Column{MembersColumns[2]},
			},
		},
	}

	// TemplatesColumns holds the columns for the "templates" table.
	TemplatesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "name", Type: field.TypeString},
		{Name: "category", Type: field.TypeString},
		{Name: "source_file_name", Type: field.TypeString, SchemaType: longText},
		{Name: "created_by", Type: field.TypeString, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	// TemplatesTable holds the schema information for the "templates" table.
	TemplatesTable = &schema.Table{
		Name:       tableTemplates,
		Columns:    TemplatesColumns,
		PrimaryKey: []*schema.Column{TemplatesColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "templates_category_created_at",
				Unique:  false,
				Columns: []*schema.Column{TemplatesColumns[2], TemplatesColumns[5]},
			},
		},
	}

	// SectionsColumns holds the columns for the "template_sections" table.
	SectionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "template_id", Type: field.TypeUUID},
		{Name: "name", Type: field.TypeString, SchemaType: longText},
		{Name: "description", Type: field.TypeString, Nullable: true, SchemaType: longText},
		{Name: "display_order", Type: field.TypeInt},
	}
	// SectionsTable holds the schema information for the "template_sections" table.
	SectionsTable = &schema.Table{
		Name:       tableSections,
		Columns:    SectionsColumns,
		PrimaryKey: []*schema.Column{SectionsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "template_sections_templates_sections",
				Columns:    []*schema.Column{SectionsColumns[1]},
				RefColumns: []*schema.Column{TemplatesColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "template_sections_template_id_display_order",
				Unique:  true,
				Columns: []*schema.Column{SectionsColumns[1], SectionsColumns[4]},
			},
		},
	}

	// FieldsColumns holds the columns for the "template_fields" table.
	FieldsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "section_id", Type: field.TypeUUID},
		{Name: "label", Type: field.TypeString, SchemaType: longText},
		{Name: "field_kind", Type: field.TypeString},
		{Name: "required", Type: field.TypeBool},
		{Name: "display_order", Type: field.TypeInt},
		{Name: "columns", Type: field.TypeJSON, Nullable: true},
		{Name: "placeholder", Type: field.TypeString, Nullable: true, SchemaType: longText},
	}
	// FieldsTable holds the schema information for the "template_fields" table.
	FieldsTable = &schema.Table{
		Name:       tableFields,
		Columns:    FieldsColumns,
		PrimaryKey: []*schema.Column{FieldsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "template_fields_template_sections_fields",
				Columns:    []*schema.Column{FieldsColumns[1]},
				RefColumns: []*schema.Column{SectionsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "template_fields_section_id_display_order",
				Unique:  true,
				Columns: []*schema.Column{FieldsColumns[1], FieldsColumns[5]},
			},
		},
	}

	// Tables holds all the tables in the schema, parents first.
	Tables = []*schema.Table{
		SessionsTable,
		CandidatesTable,
		GroupingsTable,
		MembersTable,
		TemplatesTable,
		SectionsTable,
		FieldsTable,
	}
)

func init() {
	CandidatesTable.ForeignKeys[0].RefTable = SessionsTable
	GroupingsTable.ForeignKeys[0].RefTable = SessionsTable
	MembersTable.ForeignKeys[0].RefTable = CandidatesTable
	MembersTable.ForeignKeys[1].RefTable = GroupingsTable
	SectionsTable.ForeignKeys[0].RefTable = TemplatesTable
	FieldsTable.ForeignKeys[0].RefTable = SectionsTable
}
