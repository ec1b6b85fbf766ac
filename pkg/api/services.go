package api

import (
	"fmt"
	"net/url"
)

// Services understood by the management server, relative to the API root.
//
// Listing endpoints all return the standard client envelope (a
// "clientProperties" array) unless noted otherwise.
const (
	// ServiceEntities lists the entities visible to the authenticated user.
	ServiceEntities = "Client"

	// ServiceEntitiesHidden is the exhaustive listing, including entities
	// the user has no direct visibility into.
	ServiceEntitiesHidden = "Client?hiddenclients=true"

	// ServiceEntityCache is the paginated server-side cache endpoint. The
	// compiled query string from the query compiler is appended verbatim.
	ServiceEntityCache = "ClientCache?"

	// ServiceVirtualizationClients lists virtualization pseudo-clients.
	ServiceVirtualizationClients = "Client?PseudoClientType=VSPseudo"

	// ServiceVirtualizationAccessNodes lists VSA access-node clients.
	ServiceVirtualizationAccessNodes = "Client?PseudoClientType=VSPseudo&accessNodes=true"

	// ServiceFileServers lists file-server clients.
	ServiceFileServers = "Client?PseudoClientType=FSPseudo"

	// ServiceLaptops lists laptop clients.
	ServiceLaptops = "Client?DeviceType=Laptop"

	// App-category listings return the app envelope (a "clients" array).
	ServiceOffice365   = "Office365/entities?agentType=O365"
	ServiceDynamics365 = "Office365/entities?agentType=D365"
	ServiceSalesforce  = "CloudApps/entities?appType=Salesforce"

	// ServiceVirtualMachines returns the VM envelope (a "virtualMachines"
	// array). Names in it are not guaranteed unique.
	ServiceVirtualMachines = "VM"
)

// EntityDetail is the per-entity detail probe used for specialization and
// handle property population.
func EntityDetail(id string) string {
	return fmt.Sprintf("Client/%s", url.PathEscape(id))
}

// Readiness builds the readiness-check service for one entity. The flags
// are supplied by the caller as pre-encoded query values.
func Readiness(id string, flags url.Values) string {
	return fmt.Sprintf("Client/%s/CheckReadiness?%s", url.PathEscape(id), flags.Encode())
}
