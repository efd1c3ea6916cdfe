package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

const (
	searchMaxLimit      = 10
	searchDefaultLimit  = 5
	similarMaxLimit     = 5
	similarDefaultLimit = 3
)

var stageValues = []string{"idea", "mvp", "traction", "scale", "mature"}

var typeValues = []string{"decision", "problem", "lesson", "signal", "advice"}

var searchExperienceTool = mcp.NewTool("search_experience",
	mcp.WithDescription("Search real entrepreneurial experiences extracted from startup podcasts. "+
		"Use this when a user asks for advice, examples or experiences about building a company. "+
		"Returns founder decisions, problems, lessons and signals with quotes, outcomes and a "+
		"timestamped source link. Without a type filter the text is matched as a situation; "+
		"with one it runs a keyword search."),
	mcp.WithString("situation",
		mcp.Required(),
		mcp.Description("The user's situation or what they are looking for, in natural language. "+
			"Example: \"B2B SaaS founder struggling to find first paying customers after 6 months\""),
	),
	mcp.WithString("stage",
		mcp.Description("Optional startup stage filter"),
		mcp.Enum(stageValues...),
	),
	mcp.WithString("type",
		mcp.Description("Optional moment type filter"),
		mcp.Enum(typeValues...),
	),
	mcp.WithNumber("limit",
		mcp.Description("Number of results (1-10, default 5)"),
		mcp.Min(1),
		mcp.Max(searchMaxLimit),
	),
)

var experienceDetailTool = mcp.NewTool("get_experience_detail",
	mcp.WithDescription("Get the full details of one founder experience: summary, quote, decision, "+
		"outcome, lesson, context, tags and source link. Use it after search_experience."),
	mcp.WithString("moment_id",
		mcp.Required(),
		mcp.Description("The moment id shown as \"Moment ID:\" in search results"),
	),
)

var similarExperiencesTool = mcp.NewTool("find_similar_experiences",
	mcp.WithDescription("Find experiences that share themes and tags with a given moment. "+
		"Use it when a user wants more examples like one they have seen."),
	mcp.WithString("moment_id",
		mcp.Required(),
		mcp.Description("The moment to find similar experiences for"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Number of results (1-5, default 3)"),
		mcp.Min(1),
		mcp.Max(similarMaxLimit),
	),
)
