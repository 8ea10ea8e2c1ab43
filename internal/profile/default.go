package profile

// Default is the profile served before the owner has saved anything.
func Default() Profile {
	return Profile{
		Name:         "Sai Medicherla",
		Headline:     "AI-Based No-Code Operator | Workflow Optimiser | Ex-Insurance Analyst",
		Location:     "United Kingdom",
		ShortSummary: "I streamline manual workflows and help teams scale using Airtable, Zapier, and Gen AI tools.",
		AboutLong: "Thanks for stopping by.\n\n" +
			"I am a technical professional with a background in Engineering and International Relations. " +
			"I specialise in data-focused problem-solving and operational excellence through AI automation and no-code platforms.\n\n" +
			"I have over 2 years of experience in ops-heavy analyst roles across insurance tech and higher education, " +
			"streamlining messy workflows with tools like Airtable, Zapier, Relay, and ChatGPT.",
		Experience: []Experience{
			{
				ID:       "1",
				Company:  "Migreats",
				Title:    "Operations and Product",
				Dates:    "Jul 2025 - Sept 2025",
				Location: "London, UK (Remote)",
				Description: []string{
					"Map and streamline community and events workflows to remove friction and clarify owners and handoffs.",
					"Analyse engagement and operations data to surface bottlenecks and simple wins that move key metrics.",
				},
				LogoURL:        "https://ui-avatars.com/api/?name=Migreats&background=random",
				EmploymentType: "Contract",
			},
			{
				ID:       "2",
				Company:  "NFU Mutual",
				Title:    "Insurance Analyst",
				Dates:    "Nov 2023 - Oct 2024",
				Location: "Bristol, UK",
				Description: []string{
					"Led analysis for 1,500+ policies with a value over £30 million to improve data quality and decisions.",
					"Partnered with Claims, Sales, and IT to redesign and automate internal steps, cutting cycle time by ~30%.",
				},
				LogoURL:        "https://logo.clearbit.com/nfumutual.co.uk",
				EmploymentType: "Full-time",
			},
			{
				ID:       "3",
				Company:  "Analog Devices",
				Title:    "Firmware Data Intern",
				Dates:    "Jul 2020 - May 2021",
				Location: "Bangalore, India",
				Description: []string{
					"Built a data framework that removed key inefficiencies and pushed testing efficiency toward 90%.",
				},
				LogoURL:        "https://logo.clearbit.com/analog.com",
				EmploymentType: "Contract",
			},
		},
		Education: []Education{
			{ID: "1", School: "University of Bristol", Degree: "MSc International Relations", Dates: "2021 - 2022"},
			{ID: "2", School: "NIT Jamshedpur", Degree: "BTech Electronics and Communication Engineering", Dates: "2015 - 2019"},
		},
		Projects: []Project{
			{
				ID:          "1",
				Name:        "Pomodoro Accountability Bot (Discord)",
				Description: "Group focus tool for a peer job seeking circle. Posts live countdowns and breaks in a shared channel.",
				Stack:       []string{"Discord API", "Automation"},
				Link:        "https://github.com/saicbm98",
			},
			{
				ID:          "2",
				Name:        "Folio",
				Description: "A professional profile site with an integrated inbox, profile Q&A and occupation classifier.",
				Stack:       []string{"Go", "NATS", "Gemini API"},
				Link:        "https://github.com/saicbm98",
			},
		},
		Skills: []string{
			"Airtable", "Zapier", "Relay", "ChatGPT", "n8n", "Excel", "Slack", "Gemini",
			"Operations Strategy", "Process Improvement", "Data Analysis", "No-Code Ops",
		},
		WhatLookingFor: []string{
			"Immediate entry to mid-level Business Ops, Product Ops, or General Ops roles.",
		},
		Contact: Contact{
			Email:        "medicherlasaicharan@gmail.com",
			GithubURL:    "https://github.com/saicbm98",
			WhatsappLink: "#",
		},
		AvatarURL: "https://ui-avatars.com/api/?name=Sai+Medicherla&background=0A66C2&color=fff",
		CoverURL:  "https://images.unsplash.com/photo-1519389950473-47ba0277781c?q=80&w=1200&auto=format&fit=crop",
	}
}
