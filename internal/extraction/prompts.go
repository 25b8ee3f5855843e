package extraction

import (
	"strings"
)

// categoryGuide is the reference taxonomy given to the model.
const categoryGuide = `- Living Expenses: Rent, Utilities, Groceries, Dining Out, Transportation
- Personal & Lifestyle: Clothing, Personal Care, Entertainment, Fitness, Travel
- Financial: Loan Payments, Credit Card Payments, Savings, Insurance, Bank Fees
- Healthcare: Doctor Visits, Pharmacy, Dental, Vision
- Subscriptions: Streaming, Software, Memberships
- Amazon: All purchases made on Amazon, sub-category should also be Amazon.
- Other: Anything that does not fit the above, sub-category should also be Other.`

// buildExtractionPrompt returns the instructions sent with every statement.
func buildExtractionPrompt() string {
	var b strings.Builder
	b.WriteString("You are a parser for credit card statements.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Extract ALL transactions from the attached statement.\n")
	b.WriteString("- Output a JSON array of objects, one per transaction.\n")
	b.WriteString("- If a value is not present in the statement, use null.\n\n")

	b.WriteString("Each object must have these fields:\n")
	b.WriteString("- \"customer_id\": string, first name and last name joined by an underscore, lower case (e.g. \"alex_juma\")\n")
	b.WriteString("- \"f_name\": string, customer first name\n")
	b.WriteString("- \"l_name\": string, customer last name\n")
	b.WriteString("- \"address\": string, customer address\n")
	b.WriteString("- \"transaction_date\": string, MM-DD-YYYY\n")
	b.WriteString("- \"posting_date\": string, MM-DD-YYYY\n")
	b.WriteString("- \"activity_description\": string, simplified merchant name in upper case (e.g. \"UBER\" for \"UBER* TRIP TORONTO ON\")\n")
	b.WriteString("- \"category\": string\n")
	b.WriteString("- \"sub_category\": string\n")
	b.WriteString("- \"amount_spent\": number, positive for purchases, negative for payments and refunds\n")
	b.WriteString("- \"credit_limit\": number, the card credit limit printed on the statement\n")
	b.WriteString("- \"available_credit\": number, the available credit printed on the statement, on the first transaction only; null elsewhere\n")
	b.WriteString("- \"is_subscription\": boolean, true for recurring subscription charges\n\n")

	b.WriteString("Use the following categories and sub-categories:\n")
	b.WriteString(categoryGuide)
	b.WriteString("\n\n")

	b.WriteString("Rules:\n")
	b.WriteString("- If the statement prints dates without a year, use the statement period year.\n")
	b.WriteString("- Skip cash advances.\n")
	b.WriteString("- Return ONLY valid raw JSON. Do NOT wrap the response in code fences.\n")
	b.WriteString("- Output must begin with \"[\" and end with \"]\".\n")
	return b.String()
}

// buildRecommendationPrompt asks for a spending review of the given JSON transactions.
func buildRecommendationPrompt(transactionsJSON string) string {
	return "Based on these credit card transactions: " + transactionsJSON + "\n\n" +
		"Provide a tabular analysis of the spending habits. Explain where money can be saved " +
		"and suggest specific, actionable steps to reduce unnecessary expenses. " +
		"Format the response in clear Markdown."
}
