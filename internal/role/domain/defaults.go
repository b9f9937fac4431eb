package domain

// Default is a built-in role definition and its grants. The owner role carries no grants; it is
// granted everything by the permission resolver.
type Default struct {
	Name        Name
	DisplayName string
	Grants      [][2]string
}

// Defaults mirrors the role seed migration.
var Defaults = []Default{
	{Name: Owner, DisplayName: "Owner"},
	{Name: Admin, DisplayName: "Administrator", Grants: [][2]string{
		{ResourceQuotes, ActionRead}, {ResourceQuotes, ActionCreate}, {ResourceQuotes, ActionUpdate}, {ResourceQuotes, ActionDelete},
		{ResourceClients, ActionRead}, {ResourceClients, ActionCreate}, {ResourceClients, ActionUpdate}, {ResourceClients, ActionDelete},
		{ResourceDocuments, ActionRead}, {ResourceDocuments, ActionCreate}, {ResourceDocuments, ActionUpdate}, {ResourceDocuments, ActionDelete},
		{ResourceOrganization, ActionUpdate}, {ResourceMembers, ActionInvite},
	}},
	{Name: Member, DisplayName: "Member", Grants: [][2]string{
		{ResourceQuotes, ActionRead}, {ResourceQuotes, ActionCreate}, {ResourceQuotes, ActionUpdate},
		{ResourceClients, ActionRead},
		{ResourceDocuments, ActionRead},
	}},
}
