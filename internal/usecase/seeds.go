package usecase

import (
	"fmt"
	"time"

	"cdoportal/internal/domain"
)

// seedHorizon matches the closing window the job adapter assumes when
// USAJOBS omits a close date.
const seedHorizon = 30 * 24 * time.Hour

type policySeed struct {
	title, summary, url, source, category, published string
}

var policySeeds = []policySeed{
	{
		title:     "Executive Order 14110: Safe, Secure, and Trustworthy AI",
		summary:   "Presidential executive order establishing new standards for AI safety and security, requiring agencies to implement AI governance frameworks and risk management practices.",
		url:       "https://www.whitehouse.gov/briefing-room/presidential-actions/2023/10/30/executive-order-on-the-safe-secure-and-trustworthy-development-and-use-of-artificial-intelligence/",
		source:    "White House",
		category:  "laws_regulations",
		published: "2023-10-30",
	},
	{
		title:     "OMB Memorandum M-23-22: Delivering a Digital-First Public Experience",
		summary:   "Guidance requiring federal agencies to modernize digital services, improve user experience, and adopt data-driven decision making in service delivery.",
		url:       "https://www.whitehouse.gov/wp-content/uploads/2023/09/M-23-22-Delivering-a-Digital-First-Public-Experience.pdf",
		source:    "OMB",
		category:  "federal_guidance",
		published: "2023-09-22",
	},
	{
		title:     "NIST AI Risk Management Framework (AI RMF 1.0)",
		summary:   "Comprehensive framework for managing risks associated with artificial intelligence systems, providing voluntary guidance for organizations developing and deploying AI.",
		url:       "https://www.nist.gov/itl/ai-risk-management-framework",
		source:    "NIST",
		category:  "standards_practices",
		published: "2023-01-26",
	},
	{
		title:     "Federal Data Strategy 2024 Action Plan",
		summary:   "Annual action plan outlining specific steps federal agencies must take to improve data governance, quality, and use in decision-making processes.",
		url:       "https://strategy.data.gov/action-plan/",
		source:    "Data.gov",
		category:  "federal_guidance",
		published: "2024-01-15",
	},
	{
		title:     "Foundations for Evidence-Based Policymaking Act of 2018",
		summary:   "Legislation requiring federal agencies to develop data strategies, appoint Chief Data Officers, and establish processes for evidence-building and evaluation.",
		url:       "https://www.congress.gov/bill/115th-congress/house-bill/4174",
		source:    "Congress.gov",
		category:  "laws_regulations",
		published: "2018-01-14",
	},
	{
		title:     "OMB Circular A-130: Managing Information as a Strategic Resource",
		summary:   "Establishes policy for the management of federal information resources, including requirements for privacy, security, accessibility, and records management.",
		url:       "https://www.whitehouse.gov/sites/whitehouse.gov/files/omb/circulars/A130/a130revised.pdf",
		source:    "OMB",
		category:  "federal_guidance",
		published: "2016-07-28",
	},
	{
		title:     "NIST Cybersecurity Framework 2.0",
		summary:   "Updated framework providing guidance for organizations to manage and reduce cybersecurity risk, with enhanced focus on governance and supply chain security.",
		url:       "https://www.nist.gov/cyberframework",
		source:    "NIST",
		category:  "standards_practices",
		published: "2024-02-26",
	},
	{
		title:     "Open, Public, Electronic, and Necessary (OPEN) Government Data Act",
		summary:   "Requires federal agencies to publish data as open data by default, making government information accessible, discoverable, and usable by the public.",
		url:       "https://www.congress.gov/bill/115th-congress/house-bill/4174/text",
		source:    "Congress.gov",
		category:  "laws_regulations",
		published: "2019-01-14",
	},
	{
		title:     "OMB Memorandum M-19-23: Phase 1 Implementation of FITARA",
		summary:   "Guidance on implementing the Federal Information Technology Acquisition Reform Act, emphasizing CIO authority and IT modernization.",
		url:       "https://www.whitehouse.gov/wp-content/uploads/2019/06/M-19-23.pdf",
		source:    "OMB",
		category:  "federal_guidance",
		published: "2019-06-25",
	},
	{
		title:     "NIST Privacy Framework 1.0",
		summary:   "Voluntary tool to help organizations identify and manage privacy risks, complementing the NIST Cybersecurity Framework.",
		url:       "https://www.nist.gov/privacy-framework",
		source:    "NIST",
		category:  "standards_practices",
		published: "2020-01-16",
	},
}

type jobSeed struct {
	id, title, agency, location string
	remote                      bool
	salaryMin, salaryMax        int64
	clearance                   string
	posted                      string
}

var jobSeeds = []jobSeed{
	{"USAJOBS-001-DS", "Data Scientist (AI/ML)", "Department of Defense", "Washington, DC", false, 98496, 128043, "Secret", "2024-11-10"},
	{"USAJOBS-002-CDO", "Chief Data Officer", "Department of Health and Human Services", "Bethesda, MD", true, 141022, 183300, "", "2024-11-12"},
	{"USAJOBS-003-ML", "Machine Learning Engineer", "National Security Agency", "Fort Meade, MD", false, 112015, 145617, "Top Secret/SCI", "2024-11-13"},
	{"USAJOBS-004-DA", "Data Analyst (Policy Research)", "Office of Management and Budget", "Washington, DC", true, 82764, 107590, "", "2024-11-11"},
	{"USAJOBS-005-AI", "Artificial Intelligence Specialist", "Department of Homeland Security", "Arlington, VA", false, 98496, 128043, "Secret", "2024-11-14"},
	{"USAJOBS-006-DE", "Data Engineer", "Department of Veterans Affairs", "Multiple Locations", true, 98496, 128043, "", "2024-11-09"},
	{"USAJOBS-007-BA", "Business Intelligence Analyst", "General Services Administration", "Washington, DC", true, 72750, 94581, "", "2024-11-08"},
	{"USAJOBS-008-DG", "Data Governance Specialist", "Department of Commerce", "Suitland, MD", false, 82764, 107590, "", "2024-11-15"},
}

// SeedItems returns the fixed fallback content for a kind. News has none.
// Job closing dates are relative to now so seeded listings stay visible.
func SeedItems(kind domain.Kind, now time.Time) []domain.Item {
	now = now.UTC()

	switch kind {
	case domain.KindPolicy:
		items := make([]domain.Item, 0, len(policySeeds))
		for _, s := range policySeeds {
			items = append(items, domain.Item{
				Kind:        domain.KindPolicy,
				NaturalKey:  s.url,
				Title:       s.title,
				Summary:     s.summary,
				URL:         s.url,
				Source:      s.source,
				Category:    s.category,
				PublishedAt: seedDate(s.published),
				FetchedAt:   now,
			})
		}
		return items
	case domain.KindJobs:
		closing := now.Add(seedHorizon)
		items := make([]domain.Item, 0, len(jobSeeds))
		for i, s := range jobSeeds {
			item := domain.Item{
				Kind:        domain.KindJobs,
				NaturalKey:  s.id,
				Title:       s.title,
				URL:         fmt.Sprintf("https://www.usajobs.gov/job/%03d", i+1),
				Source:      "USAJOBS",
				PublishedAt: seedDate(s.posted),
				FetchedAt:   now,
				Agency:      s.agency,
				Location:    s.location,
				Remote:      s.remote,
				SalaryMin:   &s.salaryMin,
				SalaryMax:   &s.salaryMax,
				ClosingAt:   &closing,
			}
			if s.clearance != "" {
				level := s.clearance
				item.ClearanceLevel = &level
			}
			items = append(items, item)
		}
		return items
	default:
		return nil
	}
}

func seedDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(fmt.Sprintf("invalid seed date %q", s))
	}
	return t
}
