package locale

var english = map[string]string{
	// Error tokens
	"unauthorized":        "You are not allowed to do that.",
	"invalid_amount":      "Enter a whole amount greater than zero.",
	"insufficient_funds":  "The account does not have enough funds.",
	"account_not_found":   "That account does not exist.",
	"state_id_not_exists": "No person with that state ID exists.",
	"invalid_role":        "That role cannot be assigned.",
	"invalid_target":      "That target is not allowed.",
	"unknown_character":   "Your character is not loaded yet.",
	"conflict":            "The account changed, please try again.",
	"generic_failure":     "Something went wrong, please try again later.",
	"invalid_request":     "The request was malformed.",

	// Interface
	"bank":                "Bank",
	"dashboard":           "Dashboard",
	"accounts":            "Accounts",
	"transactions":        "Transactions",
	"logs":                "Logs",
	"balance":             "Balance",
	"cash":                "Cash",
	"deposit":             "Deposit",
	"withdraw":            "Withdraw",
	"transfer":            "Transfer",
	"members":             "Members",
	"personal_account":    "Personal account",
	"shared_account":      "Shared account",
	"no_account_selected": "No account selected",
	"role_owner":          "Owner",
	"role_manager":        "Manager",
	"role_contributor":    "Contributor",
}

var french = map[string]string{
	"unauthorized":        "Vous n'êtes pas autorisé à faire cela.",
	"invalid_amount":      "Saisissez un montant entier supérieur à zéro.",
	"insufficient_funds":  "Le compte ne dispose pas de fonds suffisants.",
	"account_not_found":   "Ce compte n'existe pas.",
	"state_id_not_exists": "Aucune personne ne correspond à cet identifiant.",
	"invalid_role":        "Ce rôle ne peut pas être attribué.",
	"invalid_target":      "Cette cible n'est pas autorisée.",
	"unknown_character":   "Votre personnage n'est pas encore chargé.",
	"conflict":            "Le compte a changé, veuillez réessayer.",
	"generic_failure":     "Une erreur est survenue, veuillez réessayer plus tard.",
	"invalid_request":     "La requête est invalide.",

	"bank":                "Banque",
	"dashboard":           "Tableau de bord",
	"accounts":            "Comptes",
	"transactions":        "Transactions",
	"logs":                "Historique",
	"balance":             "Solde",
	"cash":                "Espèces",
	"deposit":             "Déposer",
	"withdraw":            "Retirer",
	"transfer":            "Virement",
	"members":             "Membres",
	"personal_account":    "Compte personnel",
	"shared_account":      "Compte partagé",
	"no_account_selected": "Aucun compte sélectionné",
	"role_owner":          "Propriétaire",
	"role_manager":        "Gestionnaire",
	"role_contributor":    "Contributeur",
}
