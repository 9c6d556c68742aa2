package preset

func stringPtr(s string) *string {
	return &s
}

// Builtin returns the presets shipped with the tool.
func Builtin() []Preset {
	return []Preset{
		{
			Name:        "recent-commits",
			Description: "Show recent commits",
			Query: `{
  repository {
    commits(limit: $limit) {
      hash @output
      message @output
      author @output
      date @output
    }
  }
}`,
			Params: []Param{
				{
					Name:        "limit",
					Description: "Maximum number of commits to show",
					Default:     stringPtr("10"),
					Inline:      true,
				},
			},
		},
		{
			Name:        "branches",
			Description: "List all branches with their latest commit",
			Query: `{
  repository {
    branches {
      name @output
      commit {
        hash @output
        message @output
      }
    }
  }
}`,
		},
		{
			Name:        "tags",
			Description: "List all tags with their commit",
			Query: `{
  repository {
    tags {
      name @output
      message @output
      commit {
        hash @output
      }
    }
  }
}`,
		},
		{
			Name:        "commits-by-author",
			Description: "Show commits by a specific author",
			Query: `{
  repository {
    commits {
      author @output @filter(op: "=", value: ["$author"])
      hash @output
      message @output
      date @output
    }
  }
}`,
			Params: []Param{
				{
					Name:        "author",
					Description: "Author name to filter by",
					Required:    true,
				},
			},
		},
		{
			Name:        "search-commits",
			Description: "Search commit messages by regex pattern",
			Query: `{
  repository {
    commits {
      message @output @filter(op: "regex", value: ["$pattern"])
      hash @output
      author @output
      date @output
    }
  }
}`,
			Params: []Param{
				{
					Name:        "pattern",
					Description: "Regex pattern to search for in commit messages",
					Required:    true,
				},
			},
		},
	}
}
