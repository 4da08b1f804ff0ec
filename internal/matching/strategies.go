package matching

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealsync/internal/model"
	"github.com/sells-group/dealsync/internal/normalize"
	"github.com/sells-group/dealsync/pkg/hubspot"
)

// companySearchLimit bounds how many companies are followed per term.
const companySearchLimit = 3

// CompanyAssociation finds deals associated with a company of the same name.
type CompanyAssociation struct {
	crm hubspot.Client
}

func (s *CompanyAssociation) Name() string     { return "company_association" }
func (s *CompanyAssociation) Unfiltered() bool { return true }

func (s *CompanyAssociation) Find(ctx context.Context, ext *model.Extraction, limit int, pipeline string) ([]model.DealMatchCandidate, error) {
	name := strings.TrimSpace(ext.CompanyName)
	if name == "" {
		return nil, nil
	}

	var companies []hubspot.Object
	for _, term := range companyTerms(name) {
		found, err := hubspot.SearchCompanies(ctx, s.crm, term, companySearchLimit)
		if err != nil {
			return nil, eris.Wrap(err, "matching: company search")
		}
		if len(found) > 0 {
			companies = found
			break
		}
	}
	if len(companies) == 0 {
		return nil, nil
	}

	var dealIDs []string
	companyOf := make(map[string]string)
	for _, co := range companies {
		ids, err := s.crm.ListAssociations(ctx, hubspot.ObjectCompanies, co.ID, hubspot.ObjectDeals)
		if err != nil {
			return nil, eris.Wrapf(err, "matching: deals of company %s", co.ID)
		}
		for _, id := range ids {
			if _, dup := companyOf[id]; dup {
				continue
			}
			companyOf[id] = co.Get("name")
			dealIDs = append(dealIDs, id)
		}
	}
	if len(dealIDs) == 0 {
		return nil, nil
	}

	deals, err := s.crm.BatchReadObjects(ctx, hubspot.ObjectDeals, dealIDs, hubspot.DealProperties)
	if err != nil {
		return nil, eris.Wrap(err, "matching: read associated deals")
	}

	var kept []hubspot.Object
	for _, d := range deals {
		if inPipeline(d, pipeline) {
			kept = append(kept, d)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		ti, _ := lastModified(kept[i])
		tj, _ := lastModified(kept[j])
		return ti.After(tj)
	})
	if len(kept) > limit {
		kept = kept[:limit]
	}

	out := make([]model.DealMatchCandidate, 0, len(kept))
	for _, d := range kept {
		c := candidateFromDeal(d, ConfidenceCompanyAssociation, s.Name(),
			fmt.Sprintf("Associated with company %q", companyOf[d.ID]))
		c.CompanyName = companyOf[d.ID]
		out = append(out, c)
	}
	return out, nil
}

// companyTerms yields the full name, then its first and last words.
func companyTerms(name string) []string {
	terms := []string{name}
	words := strings.Fields(normalize.CompanyName(name))
	if len(words) > 1 {
		terms = append(terms, words[0])
		if last := words[len(words)-1]; last != words[0] {
			terms = append(terms, last)
		}
	}
	return terms
}

// DealName finds deals whose name contains the company name.
type DealName struct {
	crm hubspot.Client
}

func (s *DealName) Name() string     { return "deal_name" }
func (s *DealName) Unfiltered() bool { return true }

func (s *DealName) Find(ctx context.Context, ext *model.Extraction, limit int, pipeline string) ([]model.DealMatchCandidate, error) {
	company := strings.TrimSpace(ext.CompanyName)
	if company == "" {
		return nil, nil
	}
	deals, err := hubspot.SearchDeals(ctx, s.crm, company, pipeline, limit*2)
	if err != nil {
		return nil, eris.Wrap(err, "matching: deal name search")
	}

	exact := normalize.Fold(company + " Deal")
	folded := normalize.Fold(company)
	tokens := normalize.SignificantTokens(normalize.CompanyName(company))

	var out []model.DealMatchCandidate
	for _, d := range deals {
		name := d.Get("dealname")
		fname := normalize.Fold(name)
		var conf float64
		var reason string
		switch {
		case fname == exact:
			conf, reason = ConfidenceDealNameExact, fmt.Sprintf("Deal name is %q", name)
		case strings.Contains(fname, folded):
			conf, reason = ConfidenceDealNameContains, fmt.Sprintf("Deal name contains %q", company)
		case containsAnyWord(name, tokens):
			conf, reason = ConfidenceDealNameToken, fmt.Sprintf("Deal name shares a word with %q", company)
		default:
			continue
		}
		c := candidateFromDeal(d, conf, s.Name(), reason)
		c.CompanyName = company
		out = append(out, c)
	}
	return out, nil
}

func containsAnyWord(s string, words []string) bool {
	for _, w := range words {
		if normalize.ContainsWord(s, w) {
			return true
		}
	}
	return false
}

// Contact finds deals by the contact's email or name.
type Contact struct {
	crm hubspot.Client
}

func (s *Contact) Name() string     { return "contact" }
func (s *Contact) Unfiltered() bool { return false }

func (s *Contact) Find(ctx context.Context, ext *model.Extraction, limit int, pipeline string) ([]model.DealMatchCandidate, error) {
	term, conf := strings.TrimSpace(ext.ContactEmail), ConfidenceContactEmail
	if term == "" {
		term, conf = strings.TrimSpace(ext.ContactName), ConfidenceContactName
	}
	if term == "" {
		return nil, nil
	}
	deals, err := hubspot.SearchDeals(ctx, s.crm, term, pipeline, limit)
	if err != nil {
		return nil, eris.Wrap(err, "matching: contact search")
	}
	out := make([]model.DealMatchCandidate, 0, len(deals))
	for _, d := range deals {
		c := candidateFromDeal(d, conf, s.Name(), fmt.Sprintf("Matches contact %q", term))
		c.ContactName = strings.TrimSpace(ext.ContactName)
		out = append(out, c)
	}
	return out, nil
}
